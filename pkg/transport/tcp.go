// Package transport implements the peer transport (spec C5): a listener and
// dialer over TCP, with per-peer framed readers/writers built on
// pkg/message, and connected/disconnected lifecycle events.
package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ghostline-signal/ghostline/pkg/message"
	"github.com/pion/logging"
)

// DefaultDialTimeout is the dialer timeout used when Config.DialTimeout is
// zero (spec §4.5 "Dialer creates an outbound connection with a timeout
// (default 5s)").
const DefaultDialTimeout = 5 * time.Second

// Config configures a Transport.
type Config struct {
	// Listener is an optional pre-existing listener. If nil, a new one is
	// created from ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g. ":0" for an OS-assigned
	// ephemeral port).
	ListenAddr string

	// DialTimeout bounds outbound connection attempts. Defaults to
	// DefaultDialTimeout.
	DialTimeout time.Duration

	// OnMessage is called with the peer_id and unwrapped payload for every
	// received TypeMessage envelope. Required.
	OnMessage MessageHandler

	// OnEvent is called for connected/disconnected lifecycle transitions.
	// Optional.
	OnEvent EventHandler

	// LoggerFactory builds the transport's logger. If nil, logging is
	// disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
}

// peerConn pairs a live socket with its framed reader/writer.
type peerConn struct {
	conn   net.Conn
	writer *message.StreamWriter
	mu     sync.Mutex // serializes writes
}

// Transport is the TCP peer transport: a listener, a dialer, and a map of
// live per-peer connections keyed by peer_id ("remote_ip:remote_port").
type Transport struct {
	cfg      Config
	listener net.Listener
	log      logging.LeveledLogger

	closeCh chan struct{}
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool

	connsMu sync.RWMutex
	conns   map[string]*peerConn
}

// New builds a Transport from cfg but does not start accepting connections;
// call Start for that.
func New(cfg Config) (*Transport, error) {
	if cfg.OnMessage == nil {
		return nil, ErrClosed
	}
	cfg.applyDefaults()

	t := &Transport{
		cfg:     cfg,
		closeCh: make(chan struct{}),
		conns:   make(map[string]*peerConn),
	}
	if cfg.LoggerFactory != nil {
		t.log = cfg.LoggerFactory.NewLogger("transport")
	}

	if cfg.Listener != nil {
		t.listener = cfg.Listener
	} else {
		addr := cfg.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		t.listener = listener
	}

	return t, nil
}

// Start begins accepting inbound connections.
func (t *Transport) Start() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Infof("peer transport listening on %s", t.listener.Addr())
	}

	t.wg.Add(1)
	go t.acceptLoop()
	return nil
}

// Stop closes the listener then every peer connection.
func (t *Transport) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	t.mu.Unlock()

	close(t.closeCh)
	t.listener.Close()

	t.connsMu.Lock()
	for _, pc := range t.conns {
		pc.conn.Close()
	}
	t.conns = make(map[string]*peerConn)
	t.connsMu.Unlock()

	t.wg.Wait()
	return nil
}

// LocalAddr returns the address the transport is listening on.
func (t *Transport) LocalAddr() net.Addr {
	return t.listener.Addr()
}

// Dial opens an outbound connection to addr, adopting it under the
// connection's remote address as peer_id (spec §4.5 dialer).
func (t *Transport) Dial(addr string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.DialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}

	peerID := conn.RemoteAddr().String()
	t.adopt(peerID, conn)
	return peerID, nil
}

// AddConnection adopts an already-connected socket under its remote
// address as peer_id. Used by hole-punch paths that establish a socket
// outside the normal dial path.
func (t *Transport) AddConnection(conn net.Conn) string {
	peerID := conn.RemoteAddr().String()
	t.adopt(peerID, conn)
	return peerID
}

// Send wraps payload as a TypeMessage envelope, applies jitter, and writes
// the framed envelope to peerID's connection.
func (t *Transport) Send(peerID string, payload []byte) error {
	t.connsMu.RLock()
	pc, ok := t.conns[peerID]
	t.connsMu.RUnlock()
	if !ok {
		return ErrPeerNotFound
	}

	time.Sleep(message.Jitter())

	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.writer.WriteMessage(payload)
}

// Broadcast sends payload to every currently known peer. A single per-peer
// failure does not abort the others.
func (t *Transport) Broadcast(payload []byte) {
	t.connsMu.RLock()
	peerIDs := make([]string, 0, len(t.conns))
	for id := range t.conns {
		peerIDs = append(peerIDs, id)
	}
	t.connsMu.RUnlock()

	for _, id := range peerIDs {
		if err := t.Send(id, payload); err != nil && t.log != nil {
			t.log.Warnf("broadcast to %s failed: %v", id, err)
		}
	}
}

// Peers returns the peer_ids currently connected.
func (t *Transport) Peers() []string {
	t.connsMu.RLock()
	defer t.connsMu.RUnlock()
	peerIDs := make([]string, 0, len(t.conns))
	for id := range t.conns {
		peerIDs = append(peerIDs, id)
	}
	return peerIDs
}

func (t *Transport) adopt(peerID string, conn net.Conn) {
	pc := &peerConn{
		conn:   conn,
		writer: message.NewStreamWriter(conn),
	}

	t.connsMu.Lock()
	t.conns[peerID] = pc
	t.connsMu.Unlock()

	t.emit(Event{Type: EventConnected, PeerID: peerID})

	t.wg.Add(1)
	go t.readLoop(peerID, conn)
}

func (t *Transport) acceptLoop() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
				continue
			}
		}
		t.adopt(conn.RemoteAddr().String(), conn)
	}
}

func (t *Transport) readLoop(peerID string, conn net.Conn) {
	defer t.wg.Done()

	reader := message.NewStreamReader(conn)
	defer func() {
		conn.Close()
		t.connsMu.Lock()
		delete(t.conns, peerID)
		t.connsMu.Unlock()
		t.emit(Event{Type: EventDisconnected, PeerID: peerID})
	}()

	for {
		select {
		case <-t.closeCh:
			return
		default:
		}

		payload, typ, err := reader.ReadMessage()
		if err != nil {
			if err != io.EOF && t.log != nil {
				t.log.Debugf("peer %s read error: %v", peerID, err)
			}
			return
		}
		if typ != message.TypeMessage {
			continue
		}

		t.cfg.OnMessage(peerID, payload)
	}
}

func (t *Transport) emit(ev Event) {
	if t.cfg.OnEvent != nil {
		t.cfg.OnEvent(ev)
	}
}
