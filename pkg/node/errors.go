package node

import "errors"

var (
	// ErrDataDirRequired is returned when Config.DataDir is empty.
	ErrDataDirRequired = errors.New("node: DataDir is required")

	// ErrAlreadyStarted is returned when Start is called on a running node.
	ErrAlreadyStarted = errors.New("node: already started")

	// ErrNotStarted reports an operation on a node that is not running.
	// Node's methods do not check the state and do not return it.
	ErrNotStarted = errors.New("node: not started")

	// ErrAlreadyStopped is returned when Stop is called on a stopped node.
	ErrAlreadyStopped = errors.New("node: already stopped")

	// ErrNoBroker is returned when Connect is called without a configured
	// rendezvous server (spec §4.8 requires one to resolve a device id).
	ErrNoBroker = errors.New("node: no rendezvous configured, cannot resolve device id")

	// ErrUnknownPeer is returned when SendMessage targets a peer_id with no
	// live transport connection.
	ErrUnknownPeer = errors.New("node: peer not connected")
)
