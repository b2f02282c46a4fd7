package store

import "errors"

// Message store errors (spec §4.4).
var (
	// ErrNoPath is returned when Config.Path is empty.
	ErrNoPath = errors.New("store: path is required")

	// ErrPeerNotFound is returned when a peer record does not exist.
	ErrPeerNotFound = errors.New("store: peer not found")

	// ErrSessionNotFound is returned when a session record does not exist.
	ErrSessionNotFound = errors.New("store: session not found")
)
