// Package crypto provides the cryptographic primitives shared across the
// identity, key-management and session layers: hashing, key derivation and
// authenticated symmetric encryption.
package crypto

import (
	"crypto/sha256"
)

// SHA-256 output lengths.
const (
	SHA256LenBits  = 256
	SHA256LenBytes = 32
)

// SHA256 computes the SHA-256 digest of a message.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}
