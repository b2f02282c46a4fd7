package message

import "errors"

// Envelope and framing errors.
var (
	// ErrTooShort is returned by Unwrap when data is shorter than the
	// minimum envelope size (16-byte header + 1-byte type + 4-byte length).
	ErrTooShort = errors.New("message: envelope too short")

	// ErrBadLength is returned by Unwrap when the encoded payload length
	// exceeds what remains in the envelope.
	ErrBadLength = errors.New("message: payload length exceeds envelope")

	// ErrFraming is returned by StreamReader when the outer length prefix
	// cannot be trusted; the connection must be dropped.
	ErrFraming = errors.New("message: framing error")
)
