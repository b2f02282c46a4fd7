package broker

import "errors"

var (
	// ErrNotInitialized is returned when Connect is called before
	// Initialize.
	ErrNotInitialized = errors.New("broker: not initialized")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("broker: already initialized")

	// ErrPeerUnreachable is returned when every step of Connect's
	// five-step algorithm fails (spec §4.8, §6 scenario 5's 10s budget
	// exhausted).
	ErrPeerUnreachable = errors.New("broker: peer unreachable")

	// ErrTargetNotFound is returned when the rendezvous has no record of
	// the requested device.
	ErrTargetNotFound = errors.New("broker: target device not found")
)
