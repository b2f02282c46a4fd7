package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"path/filepath"
	"testing"
)

// testManager builds a Manager around a key generated directly (faster than
// LoadOrGenerate's default 4096-bit size) for tests that only exercise
// wrap/unwrap semantics, not on-disk persistence.
func testManager(t *testing.T) *Manager {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return &Manager{privateKey: priv}
}

func TestLoadOrGeneratePersists(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		PrivateKeyPath: filepath.Join(dir, "device_private.pem"),
		PublicKeyPath:  filepath.Join(dir, "device_public.pem"),
	}

	m1, err := LoadOrGenerate(cfg)
	if err != nil {
		t.Fatalf("LoadOrGenerate() error = %v", err)
	}
	pub1, err := m1.ExportPublic()
	if err != nil {
		t.Fatalf("ExportPublic() error = %v", err)
	}

	m2, err := LoadOrGenerate(cfg)
	if err != nil {
		t.Fatalf("LoadOrGenerate() second error = %v", err)
	}
	pub2, err := m2.ExportPublic()
	if err != nil {
		t.Fatalf("ExportPublic() second error = %v", err)
	}

	if string(pub1) != string(pub2) {
		t.Error("LoadOrGenerate() regenerated a new key instead of loading the existing one")
	}
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	m := testManager(t)
	pub, err := m.ExportPublic()
	if err != nil {
		t.Fatalf("ExportPublic() error = %v", err)
	}
	peerPub, err := LoadPeerPublic(pub)
	if err != nil {
		t.Fatalf("LoadPeerPublic() error = %v", err)
	}

	sessionKey, err := NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey() error = %v", err)
	}

	wrapped, err := Wrap(sessionKey, peerPub)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	unwrapped, err := m.Unwrap(wrapped)
	if err != nil {
		t.Fatalf("Unwrap() error = %v", err)
	}
	if string(unwrapped) != string(sessionKey) {
		t.Error("Unwrap(Wrap(k)) != k")
	}
}

func TestUnwrapWrongKeyFails(t *testing.T) {
	m1 := testManager(t)
	m2 := testManager(t)

	pub1, _ := m1.ExportPublic()
	peerPub1, err := LoadPeerPublic(pub1)
	if err != nil {
		t.Fatalf("LoadPeerPublic() error = %v", err)
	}

	sessionKey, _ := NewSessionKey()
	wrapped, err := Wrap(sessionKey, peerPub1)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	if _, err := m2.Unwrap(wrapped); err != ErrKeyUnwrapFailed {
		t.Errorf("Unwrap() with wrong key error = %v, want %v", err, ErrKeyUnwrapFailed)
	}
}

func TestDeriveDeterministicWithSameSalt(t *testing.T) {
	shared := []byte("a-shared-secret-from-the-wire")
	salt := make([]byte, 16)

	k1, usedSalt1, err := Derive(shared, salt)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	k2, usedSalt2, err := Derive(shared, salt)
	if err != nil {
		t.Fatalf("Derive() second error = %v", err)
	}

	if string(k1) != string(k2) {
		t.Error("Derive() not deterministic for identical salt")
	}
	if string(usedSalt1) != string(usedSalt2) {
		t.Error("Derive() changed the supplied salt")
	}
	if len(k1) != 32 {
		t.Errorf("Derive() key len = %d, want 32", len(k1))
	}
}

func TestDeriveGeneratesSaltWhenNil(t *testing.T) {
	_, salt, err := Derive([]byte("secret"), nil)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if len(salt) != 16 {
		t.Errorf("Derive() generated salt len = %d, want 16", len(salt))
	}
}

func TestExportEncryptedRoundTrip(t *testing.T) {
	m := testManager(t)
	path := filepath.Join(t.TempDir(), "device_private.enc.pem")
	passphrase := []byte("correct horse battery staple")

	if err := m.ExportEncrypted(path, passphrase); err != nil {
		t.Fatalf("ExportEncrypted() error = %v", err)
	}

	loaded, err := LoadEncrypted(path, passphrase)
	if err != nil {
		t.Fatalf("LoadEncrypted() error = %v", err)
	}

	if loaded.privateKey.N.Cmp(m.privateKey.N) != 0 {
		t.Error("LoadEncrypted() modulus does not match original key")
	}
}

func TestExportEncryptedWrongPassphraseFails(t *testing.T) {
	m := testManager(t)
	path := filepath.Join(t.TempDir(), "device_private.enc.pem")

	if err := m.ExportEncrypted(path, []byte("right")); err != nil {
		t.Fatalf("ExportEncrypted() error = %v", err)
	}

	if _, err := LoadEncrypted(path, []byte("wrong")); err == nil {
		t.Error("LoadEncrypted() with wrong passphrase succeeded, want error")
	}
}
