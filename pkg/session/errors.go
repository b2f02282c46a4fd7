package session

import "errors"

// Session manager errors (spec §4.9).
var (
	// ErrNotMessageEnvelope is returned when a parsed envelope's "type"
	// field is not "message".
	ErrNotMessageEnvelope = errors.New("session: envelope is not a message")

	// ErrUndecryptable is returned from the inbound path when no session
	// key is known for the sending peer. The ciphertext is still
	// persisted; this error only affects the live decrypt.
	ErrUndecryptable = errors.New("session: no session key for peer")
)
