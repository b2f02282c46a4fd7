package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
)

// SessionKeySize is the length of a symmetric session key (256 bits).
const SessionKeySize = 32

// GCMNonceSize is the length of the AES-GCM nonce.
const GCMNonceSize = 12

// PadBlockSize is the block size padded plaintext is rounded up to.
const PadBlockSize = 256

// Errors for symmetric encryption.
var (
	ErrInvalidSessionKeySize = errors.New("crypto: session key must be 32 bytes")
	ErrAuthFailed            = errors.New("crypto: authentication failed")
	ErrCiphertextTooShort    = errors.New("crypto: ciphertext shorter than nonce")
	ErrPaddedTooShort        = errors.New("crypto: padded plaintext shorter than length prefix")
	ErrPaddedLengthMismatch  = errors.New("crypto: original length exceeds padded payload")
)

// NewSessionKey returns 32 fresh random bytes suitable for AES-256-GCM.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt authenticates and encrypts plaintext with AES-256-GCM, returning
// nonce(12) || ciphertext_with_tag(16 included).
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) != SessionKeySize {
		return nil, ErrInvalidSessionKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, GCMNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, len(nonce)+len(sealed))
	copy(out, nonce)
	copy(out[len(nonce):], sealed)
	return out, nil
}

// Decrypt inverts Encrypt. Returns ErrAuthFailed when the tag does not verify.
func Decrypt(data, key []byte) ([]byte, error) {
	if len(key) != SessionKeySize {
		return nil, ErrInvalidSessionKeySize
	}
	if len(data) < GCMNonceSize {
		return nil, ErrCiphertextTooShort
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := data[:GCMNonceSize]
	ciphertext := data[GCMNonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Pad applies length-hiding padding: u32_be(len(M)) || M || pad_byte*n,
// rounding the total up to the next PadBlockSize boundary. A plaintext that
// is already block-aligned is padded to exactly one further full block.
func Pad(plaintext []byte) []byte {
	prefixed := make([]byte, 4+len(plaintext))
	binary.BigEndian.PutUint32(prefixed[:4], uint32(len(plaintext)))
	copy(prefixed[4:], plaintext)

	total := ((len(prefixed) / PadBlockSize) + 1) * PadBlockSize
	padded := make([]byte, total)
	copy(padded, prefixed)
	return padded
}

// Unpad inverts Pad, returning the original plaintext.
func Unpad(padded []byte) ([]byte, error) {
	if len(padded) < 4 {
		return nil, ErrPaddedTooShort
	}
	origLen := binary.BigEndian.Uint32(padded[:4])
	if int(origLen) > len(padded)-4 {
		return nil, ErrPaddedLengthMismatch
	}
	return padded[4 : 4+origLen], nil
}
