// Package node wires the identity, key, store, transport, session,
// rendezvous, broker, and discovery layers into a single running
// Ghostline device (spec §1 overview).
package node

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"

	"github.com/pion/logging"

	"github.com/ghostline-signal/ghostline/pkg/broker"
	"github.com/ghostline-signal/ghostline/pkg/discovery"
	"github.com/ghostline-signal/ghostline/pkg/identity"
	"github.com/ghostline-signal/ghostline/pkg/keys"
	"github.com/ghostline-signal/ghostline/pkg/rendezvousclient"
	"github.com/ghostline-signal/ghostline/pkg/session"
	"github.com/ghostline-signal/ghostline/pkg/store"
	"github.com/ghostline-signal/ghostline/pkg/transport"
)

// Node is a running Ghostline device: local identity and keys, a
// message store, a peer transport, session encryption, and, when
// configured, rendezvous registration, connection brokering, and LAN
// discovery.
type Node struct {
	cfg Config
	log logging.LeveledLogger

	identity *identity.Device
	keys     *keys.Manager
	store    *store.Store
	sessions *session.Manager
	tr       *transport.Transport

	rendezvous *rendezvousclient.Client
	broker     *broker.Broker
	resolver   *discovery.Resolver
	advertiser *discovery.Advertiser

	mu    sync.RWMutex
	state State
}

// New loads or creates the device's identity, keys, and store under
// cfg.DataDir, and builds the transport and session layers. The network
// stack is not started; call Start for that.
func New(cfg Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	n := &Node{cfg: cfg, state: StateInitialized}
	if cfg.LoggerFactory != nil {
		n.log = cfg.LoggerFactory.NewLogger("node")
	}

	var err error
	n.identity, err = identity.Load(identity.Config{
		StoragePath: filepath.Join(cfg.DataDir, "identity.json"),
		DeviceName:  cfg.DeviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("node: load identity: %w", err)
	}

	n.keys, err = keys.LoadOrGenerate(keys.Config{
		PrivateKeyPath: filepath.Join(cfg.DataDir, "keys", "device_private.pem"),
		PublicKeyPath:  filepath.Join(cfg.DataDir, "keys", "device_public.pem"),
	})
	if err != nil {
		return nil, fmt.Errorf("node: load keys: %w", err)
	}

	n.store, err = store.Open(store.Config{Path: filepath.Join(cfg.DataDir, "ghostline.db")})
	if err != nil {
		return nil, fmt.Errorf("node: open store: %w", err)
	}

	n.sessions = session.New(session.Config{
		SelfDeviceID:    n.identity.ID(),
		Store:           n.store,
		SessionLifetime: cfg.SessionLifetime,
		OnMessage:       cfg.OnMessage,
		OnUndecryptable: n.onUndecryptable,
	})

	n.tr, err = transport.New(transport.Config{
		ListenAddr:    cfg.ListenAddr,
		OnMessage:     n.onTransportMessage,
		OnEvent:       n.onTransportEvent,
		LoggerFactory: cfg.LoggerFactory,
	})
	if err != nil {
		n.store.Close()
		return nil, fmt.Errorf("node: build transport: %w", err)
	}

	if cfg.EnableLANDiscovery {
		n.resolver, err = discovery.NewResolver(discovery.ResolverConfig{})
		if err != nil {
			n.store.Close()
			return nil, fmt.Errorf("node: build mDNS resolver: %w", err)
		}
	}

	if cfg.RendezvousURL != "" {
		n.rendezvous = rendezvousclient.New(rendezvousclient.Config{
			ServerURL:     cfg.RendezvousURL,
			DeviceID:      n.identity.ID(),
			LoggerFactory: cfg.LoggerFactory,
		})

		n.broker = broker.New(broker.Config{
			DeviceID:      n.identity.ID(),
			Transport:     n.tr,
			Rendezvous:    n.rendezvous,
			Discovery:     n.resolver,
			Puncher:       cfg.Puncher,
			STUNServers:   cfg.STUNServers,
			OnConnected:   n.onPeerConnected,
			LoggerFactory: cfg.LoggerFactory,
		})
	}

	return n, nil
}

// Start begins accepting connections, and, if configured, registers
// with the rendezvous and starts advertising on the LAN.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if !n.state.CanStart() {
		n.mu.Unlock()
		return ErrAlreadyStarted
	}
	n.state = StateStarting
	n.mu.Unlock()

	if err := n.tr.Start(); err != nil {
		n.setState(StateInitialized)
		return fmt.Errorf("node: start transport: %w", err)
	}

	if n.cfg.EnableLANDiscovery {
		port := 0
		if tcpAddr, ok := n.tr.LocalAddr().(*net.TCPAddr); ok {
			port = tcpAddr.Port
		}
		n.advertiser = discovery.NewAdvertiser(discovery.AdvertiserConfig{
			DeviceID:      n.identity.ID(),
			Fingerprint:   n.identity.Fingerprint(),
			Port:          port,
			LoggerFactory: n.cfg.LoggerFactory,
		})
		if err := n.advertiser.Start(); err != nil && n.log != nil {
			n.log.Warnf("mDNS advertisement failed: %v", err)
		}
	}

	if n.broker != nil {
		if err := n.broker.Initialize(ctx); err != nil {
			if n.log != nil {
				n.log.Warnf("rendezvous registration failed: %v", err)
			}
		}
	}

	n.setState(StateRunning)
	if n.log != nil {
		n.log.Infof("node %s running, listening on %s", n.identity.ID(), n.tr.LocalAddr())
	}
	return nil
}

// Stop gracefully shuts down the node: rendezvous unregistration, LAN
// advertisement, the transport, and the store.
func (n *Node) Stop() error {
	n.mu.Lock()
	if !n.state.CanStop() {
		n.mu.Unlock()
		return ErrAlreadyStopped
	}
	n.state = StateStopping
	n.mu.Unlock()

	if n.broker != nil {
		n.broker.Shutdown()
	}
	if n.advertiser != nil {
		n.advertiser.Stop()
	}
	n.tr.Stop()
	n.store.Close()

	n.setState(StateStopped)
	if n.log != nil {
		n.log.Info("node stopped")
	}
	return nil
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// DeviceID returns this device's stable identifier.
func (n *Node) DeviceID() string { return n.identity.ID() }

// DeviceName returns this device's human-readable name.
func (n *Node) DeviceName() string { return n.identity.Name() }

// Fingerprint returns this device's identity fingerprint, derived from
// its device ID.
func (n *Node) Fingerprint() string { return n.identity.Fingerprint() }

// ExportPublicKey returns this device's public key in PEM form, for
// sharing with a peer through an out-of-band channel (spec §4.3).
func (n *Node) ExportPublicKey() ([]byte, error) {
	return n.keys.ExportPublic()
}

// AddPeer records a peer's identity and public key ahead of ever
// connecting to it, the way a contact is added before the first message
// is exchanged (spec §4.4's peer table).
func (n *Node) AddPeer(peerID string, publicKeyPEM []byte, displayName string) error {
	if _, err := keys.LoadPeerPublic(publicKeyPEM); err != nil {
		return fmt.Errorf("node: invalid peer public key: %w", err)
	}
	return n.store.AddPeer(peerID, publicKeyPEM, displayName, 0)
}

// Connect resolves targetDeviceID through the rendezvous and
// establishes a connection to it, returning the resulting peer_id
// (spec §4.8).
func (n *Node) Connect(ctx context.Context, targetDeviceID string) (string, error) {
	if n.broker == nil {
		return "", ErrNoBroker
	}
	return n.broker.Connect(ctx, targetDeviceID)
}

// Dial connects directly to addr without going through the rendezvous,
// returning the resulting peer_id (spec §4.5 dialer).
func (n *Node) Dial(addr string) (string, error) {
	return n.tr.Dial(addr)
}

// SendMessage encrypts plaintext for peerID under its session key and
// sends it over the peer transport (spec §4.9 "Outbound message").
func (n *Node) SendMessage(peerID string, plaintext []byte) error {
	envelope, err := n.sessions.Outbound(peerID, plaintext)
	if err != nil {
		return err
	}
	if err := n.tr.Send(peerID, envelope); err != nil {
		if err == transport.ErrPeerNotFound {
			return ErrUnknownPeer
		}
		return err
	}
	return nil
}

// Peers returns the peer_ids currently connected over the transport.
func (n *Node) Peers() []string {
	return n.tr.Peers()
}

// History returns the most recent stored messages exchanged with
// peerID, newest last.
func (n *Node) History(peerID string, limit int) ([]store.Message, error) {
	return n.store.GetMessages(peerID, limit)
}

func (n *Node) onTransportMessage(peerID string, payload []byte) {
	if _, err := n.sessions.Inbound(peerID, payload); err != nil && n.log != nil {
		n.log.Debugf("inbound message from %s not decrypted: %v", peerID, err)
	}
}

func (n *Node) onTransportEvent(ev transport.Event) {
	if n.log == nil {
		return
	}
	switch ev.Type {
	case transport.EventConnected:
		n.log.Infof("peer %s connected", ev.PeerID)
	case transport.EventDisconnected:
		n.log.Infof("peer %s disconnected", ev.PeerID)
	}
}

func (n *Node) onPeerConnected(peerID, deviceID string) {
	if n.store != nil {
		n.store.UpdatePeerLastSeen(peerID)
	}
	if n.cfg.OnPeerConnected != nil {
		n.cfg.OnPeerConnected(peerID, deviceID)
	}
}

func (n *Node) onUndecryptable(peerID, sessionID string) {
	if n.log != nil {
		n.log.Warnf("no session key for peer %s (session %s)", peerID, sessionID)
	}
}

func (n *Node) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
	if n.cfg.OnStateChanged != nil {
		n.cfg.OnStateChanged(s)
	}
}
