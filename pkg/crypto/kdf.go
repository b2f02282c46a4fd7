package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 iteration bounds. PBKDF2SHA256 does not enforce them, and the
// passphrase-wrapped private key format in pkg/keys uses a count above
// PBKDF2IterationsMax.
const (
	PBKDF2IterationsMin = 1000
	PBKDF2IterationsMax = 100000
)

// HKDFSHA256 derives key material using HKDF-SHA256 (RFC 5869).
//
// Parameters:
//   - inputKey: input keying material (IKM)
//   - salt: optional salt (nil defaults to a zero-filled HashLen block)
//   - info: optional context string binding the derived key to its purpose
//   - length: number of bytes to derive
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}

// PBKDF2SHA256 derives a key from a passphrase using PBKDF2-HMAC-SHA256.
// Used only by the optional passphrase-wrapped identity key format; the
// default unencrypted-on-disk format (spec §4.3, §6) never calls this.
func PBKDF2SHA256(passphrase, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(passphrase, salt, iterations, keyLen, sha256.New)
}
