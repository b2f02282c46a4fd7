package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	gcrypto "github.com/ghostline-signal/ghostline/pkg/crypto"
)

// passphraseSaltLen and passphraseIterations parameterize the PBKDF2 step
// of the optional at-rest format (spec §9 "Asymmetric key storage" MAY-add
// note). passphraseIterations is above crypto.PBKDF2IterationsMax.
const (
	passphraseSaltLen    = 16
	passphraseIterations = 200000
)

// ExportEncrypted writes the private key to path, wrapped with a key derived
// from passphrase via PBKDF2-HMAC-SHA256 and sealed with AES-256-GCM. This
// is an optional at-rest format; it never changes the wire contract and the
// default LoadOrGenerate path does not use it.
func (m *Manager) ExportEncrypted(path string, passphrase []byte) error {
	der, err := x509.MarshalPKCS8PrivateKey(m.privateKey)
	if err != nil {
		return fmt.Errorf("keys: marshal private key: %w", err)
	}

	salt := make([]byte, passphraseSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("keys: generate salt: %w", err)
	}
	wrapKey := gcrypto.PBKDF2SHA256(passphrase, salt, passphraseIterations, gcrypto.SessionKeySize)

	sealed, err := gcrypto.Encrypt(der, wrapKey)
	if err != nil {
		return fmt.Errorf("keys: seal private key: %w", err)
	}

	block := &pem.Block{
		Type: "ENCRYPTED GHOSTLINE PRIVATE KEY",
		Headers: map[string]string{
			"Salt":       fmt.Sprintf("%x", salt),
			"Iterations": fmt.Sprintf("%d", passphraseIterations),
		},
		Bytes: sealed,
	}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0600)
}

// LoadEncrypted loads a private key previously written by ExportEncrypted.
func LoadEncrypted(path string, passphrase []byte) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keys: read encrypted private key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	var salt []byte
	if _, err := fmt.Sscanf(block.Headers["Salt"], "%x", &salt); err != nil {
		return nil, fmt.Errorf("keys: parse salt header: %w", err)
	}
	var iterations int
	if _, err := fmt.Sscanf(block.Headers["Iterations"], "%d", &iterations); err != nil {
		return nil, fmt.Errorf("keys: parse iterations header: %w", err)
	}

	wrapKey := gcrypto.PBKDF2SHA256(passphrase, salt, iterations, gcrypto.SessionKeySize)
	der, err := gcrypto.Decrypt(block.Bytes, wrapKey)
	if err != nil {
		return nil, fmt.Errorf("keys: unseal private key: %w", err)
	}

	keyAny, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("keys: parse private key: %w", err)
	}
	priv, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("keys: private key is not RSA")
	}

	return &Manager{privateKey: priv}, nil
}
