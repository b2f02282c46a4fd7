package rendezvous

import "errors"

// Registry errors (spec §4.6).
var (
	// ErrNotFound is returned by lookup and connect_request when the
	// target device is not registered or has expired.
	ErrNotFound = errors.New("rendezvous: device not found")

	// ErrRequesterNotFound is returned by connect_request when the
	// requester itself is not currently registered.
	ErrRequesterNotFound = errors.New("rendezvous: requester not found")
)
