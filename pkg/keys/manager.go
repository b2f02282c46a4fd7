// Package keys manages the device's long-lived asymmetric identity key and
// the operations built on it: session-key generation, HKDF derivation, and
// RSA-OAEP wrap/unwrap of session keys for transport to a peer (spec §4.3).
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	gcrypto "github.com/ghostline-signal/ghostline/pkg/crypto"
)

// KeySize is the RSA modulus size in bits (spec §3, "Asymmetric identity key").
const KeySize = 4096

// DeriveInfo is the fixed HKDF info string for session-key derivation
// (spec §4.3 "derive").
var DeriveInfo = []byte("ghostline-signal-session")

// Config configures a Manager.
type Config struct {
	// PrivateKeyPath is the PKCS#8 PEM path. Required.
	PrivateKeyPath string
	// PublicKeyPath is the SPKI PEM path. Required.
	PublicKeyPath string
}

// Manager owns the local identity key and never exposes the private key
// material outside this package.
type Manager struct {
	cfg        Config
	privateKey *rsa.PrivateKey
}

// LoadOrGenerate loads an existing PEM keypair from disk, or generates and
// persists a new RSA-4096 keypair if none exists (spec §4.3 "load_or_generate").
func LoadOrGenerate(cfg Config) (*Manager, error) {
	if cfg.PrivateKeyPath == "" || cfg.PublicKeyPath == "" {
		return nil, fmt.Errorf("keys: PrivateKeyPath and PublicKeyPath are required")
	}

	m := &Manager{cfg: cfg}

	_, privErr := os.Stat(cfg.PrivateKeyPath)
	_, pubErr := os.Stat(cfg.PublicKeyPath)
	if privErr == nil && pubErr == nil {
		if err := m.load(); err != nil {
			return nil, err
		}
		return m, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.PrivateKeyPath), 0700); err != nil {
		return nil, fmt.Errorf("keys: create key directory: %w", err)
	}
	if err := m.generate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) generate() error {
	priv, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return fmt.Errorf("keys: generate RSA key: %w", err)
	}
	m.privateKey = priv

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("keys: marshal private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(m.cfg.PrivateKeyPath, privPEM, 0600); err != nil {
		return fmt.Errorf("keys: write private key: %w", err)
	}
	if err := os.Chmod(m.cfg.PrivateKeyPath, 0600); err != nil {
		return fmt.Errorf("keys: restrict private key permissions: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return fmt.Errorf("keys: marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(m.cfg.PublicKeyPath, pubPEM, 0644); err != nil {
		return fmt.Errorf("keys: write public key: %w", err)
	}
	return nil
}

func (m *Manager) load() error {
	privPEM, err := os.ReadFile(m.cfg.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("keys: read private key: %w", err)
	}
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return ErrNoPEMBlock
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("keys: parse private key: %w", err)
	}
	priv, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("keys: private key is not RSA")
	}
	m.privateKey = priv
	return nil
}

// ExportPublic returns the device's public key as PEM/SPKI bytes.
func (m *Manager) ExportPublic() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&m.privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("keys: marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// LoadPeerPublic parses a peer's SPKI PEM bytes into an RSA public key
// handle (spec §4.3 "load_peer_public").
func LoadPeerPublic(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keys: parse peer public key: %w", err)
	}
	pub, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAPublicKey
	}
	return pub, nil
}

// NewSessionKey returns 32 fresh random bytes (spec §4.3 "new_session_key").
func NewSessionKey() ([]byte, error) {
	return gcrypto.NewSessionKey()
}

// Derive runs HKDF-SHA256 over sharedSecret with the fixed session info
// string, returning a 32-byte key and the salt used (spec §4.3 "derive").
// A random 16-byte salt is generated when salt is nil.
func Derive(sharedSecret, salt []byte) (key, usedSalt []byte, err error) {
	if salt == nil {
		salt = make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, fmt.Errorf("keys: generate salt: %w", err)
		}
	}
	key, err = gcrypto.HKDFSHA256(sharedSecret, salt, DeriveInfo, gcrypto.SessionKeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("keys: derive session key: %w", err)
	}
	return key, salt, nil
}

// Wrap encrypts a session key for a peer with RSA-OAEP(SHA-256, MGF1-SHA-256,
// label=nil) (spec §4.3 "wrap").
func Wrap(sessionKey []byte, peerPub *rsa.PublicKey) ([]byte, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, peerPub, sessionKey, nil)
	if err != nil {
		return nil, fmt.Errorf("keys: wrap session key: %w", err)
	}
	return ciphertext, nil
}

// Unwrap decrypts a wrapped session key with the local private key
// (spec §4.3 "unwrap"). Failures are reported as ErrKeyUnwrapFailed.
func (m *Manager) Unwrap(ciphertext []byte) ([]byte, error) {
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, m.privateKey, ciphertext, nil)
	if err != nil {
		return nil, ErrKeyUnwrapFailed
	}
	return plaintext, nil
}
