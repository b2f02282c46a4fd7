package transport

// EventType distinguishes peer connection lifecycle events.
type EventType int

const (
	// EventConnected fires after a successful accept, dial, or adopt.
	EventConnected EventType = iota
	// EventDisconnected fires on read EOF/error or explicit close.
	EventDisconnected
)

// Event reports a peer connection lifecycle transition.
type Event struct {
	Type   EventType
	PeerID string
}

// EventHandler is called for each connection lifecycle event. Implementations
// should process events quickly or dispatch to a goroutine.
type EventHandler func(Event)

// MessageHandler is called for each unwrapped payload received from a peer.
type MessageHandler func(peerID string, payload []byte)
