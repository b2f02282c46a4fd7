package keys

import "errors"

// Key manager errors.
var (
	// ErrKeyUnwrapFailed is returned when RSA-OAEP decryption of a wrapped
	// session key fails (spec §4.3).
	ErrKeyUnwrapFailed = errors.New("keys: session key unwrap failed")

	// ErrNotRSAPublicKey is returned when a peer PEM does not decode to an
	// RSA public key.
	ErrNotRSAPublicKey = errors.New("keys: not an RSA public key")

	// ErrNoPEMBlock is returned when a PEM blob contains no decodable block.
	ErrNoPEMBlock = errors.New("keys: no PEM block found")
)
