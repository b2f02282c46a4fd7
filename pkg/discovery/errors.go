package discovery

import "errors"

var (
	// ErrClosed is returned when an operation is attempted on a closed
	// component.
	ErrClosed = errors.New("discovery: closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("discovery: already started")

	// ErrServiceNotFound is returned when a Lookup finds no matching peer.
	ErrServiceNotFound = errors.New("discovery: service not found")

	// ErrTimeout is returned when a lookup times out.
	ErrTimeout = errors.New("discovery: operation timed out")
)
