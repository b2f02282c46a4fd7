package transport

import "errors"

// Peer transport errors (spec §4.5).
var (
	// ErrClosed is returned when an operation is attempted on a stopped
	// transport.
	ErrClosed = errors.New("transport: closed")

	// ErrAlreadyStarted is returned when Start is called on a running
	// transport.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrPeerNotFound is returned when Send targets a peer_id with no live
	// connection.
	ErrPeerNotFound = errors.New("transport: peer not found")
)
