// Package broker implements the connection broker (spec C8): automatic
// peer discovery and NAT traversal keyed by device ID, sitting on top of
// the peer transport, the rendezvous client, and LAN discovery.
package broker

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/ghostline-signal/ghostline/pkg/discovery"
	"github.com/ghostline-signal/ghostline/pkg/natpunch"
	"github.com/ghostline-signal/ghostline/pkg/rendezvousclient"
	"github.com/ghostline-signal/ghostline/pkg/transport"
)

// DefaultPollInterval is the incoming-connect-request poll period (spec
// §4.8, matching original_source's ConnectionBroker.poll_interval).
const DefaultPollInterval = 2 * time.Second

// DefaultWaitForInbound is how long Connect waits for the peer to
// connect back after a direct attempt and a hole-punch both fail (spec
// §4.8 step 5, §6 scenario 5's 10s budget).
const DefaultWaitForInbound = 10 * time.Second

// probeAddr is used to discover this host's outbound-facing local
// address via the connected-UDP trick (spec §4.8 "initialize",
// original_source's ConnectionBroker._get_local_ip).
const probeAddr = "8.8.8.9:80"

// Config configures a Broker.
type Config struct {
	// DeviceID is this device's identifier.
	DeviceID string

	// Transport is the already-constructed, already-started peer
	// transport Connect dials and adopts hole-punched sockets into.
	Transport *transport.Transport

	// Rendezvous is the client used for registration, lookups, and
	// connect-request signaling. Required for Connect: without it,
	// Connect returns ErrTargetNotFound.
	Rendezvous *rendezvousclient.Client

	// Discovery resolves LAN peers as a lower-priority source of local
	// address candidates (spec §4.11). Optional.
	Discovery *discovery.Resolver

	// Puncher selects the hole-punch strategy. Defaults to
	// natpunch.SimultaneousTCP.
	Puncher natpunch.Puncher

	// STUNServers overrides natpunch.DefaultSTUNServers.
	STUNServers []string

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration

	// WaitForInbound overrides DefaultWaitForInbound.
	WaitForInbound time.Duration

	// OnConnected is called whenever a peer connection is established,
	// whether initiated by us or accepted in response to an incoming
	// connect request.
	OnConnected func(peerID, deviceID string)

	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.Puncher == nil {
		c.Puncher = natpunch.SimultaneousTCP{}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.WaitForInbound <= 0 {
		c.WaitForInbound = DefaultWaitForInbound
	}
}

// Broker manages automatic peer connections keyed by device ID.
type Broker struct {
	cfg Config
	log logging.LeveledLogger

	mu          sync.RWMutex
	initialized bool
	localIP     string
	localPort   int
	publicIP    string
	publicPort  int

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New builds a Broker from cfg.
func New(cfg Config) *Broker {
	cfg.applyDefaults()
	b := &Broker{cfg: cfg, closeCh: make(chan struct{})}
	if cfg.LoggerFactory != nil {
		b.log = cfg.LoggerFactory.NewLogger("broker")
	}
	return b
}

// Initialize discovers this device's local and public addresses,
// registers with the rendezvous, and starts the incoming-request poller
// (spec §4.8 "initialize").
func (b *Broker) Initialize(ctx context.Context) error {
	b.mu.Lock()
	if b.initialized {
		b.mu.Unlock()
		return ErrAlreadyInitialized
	}
	b.mu.Unlock()

	localIP := localOutboundIP()
	localPort := b.cfg.Transport.LocalAddr().(*net.TCPAddr).Port

	if b.log != nil {
		b.log.Infof("local address: %s:%d", localIP, localPort)
	}

	publicIP, publicPort, err := natpunch.DiscoverPublicAddress(ctx, localPort, b.cfg.STUNServers)
	if err != nil {
		if b.log != nil {
			b.log.Warnf("stun discovery failed, falling back to local address: %v", err)
		}
		publicIP, publicPort = localIP, localPort
	}

	b.mu.Lock()
	b.localIP, b.localPort = localIP, localPort
	b.publicIP, b.publicPort = publicIP, publicPort
	b.initialized = true
	b.mu.Unlock()

	if b.cfg.Rendezvous != nil {
		public := rendezvousclient.Addr{IP: publicIP, Port: publicPort}
		local := &rendezvousclient.Addr{IP: localIP, Port: localPort}

		if ok := b.cfg.Rendezvous.Register(public, local); ok {
			b.cfg.Rendezvous.StartHeartbeat(public, local)
			b.wg.Add(1)
			go b.pollLoop()
		} else if b.log != nil {
			b.log.Warnf("rendezvous server not available")
		}
	}

	return nil
}

// Shutdown stops the poller and heartbeat and unregisters from the
// rendezvous.
func (b *Broker) Shutdown() {
	close(b.closeCh)
	b.wg.Wait()

	if b.cfg.Rendezvous != nil {
		b.cfg.Rendezvous.StopHeartbeat()
		b.cfg.Rendezvous.Unregister()
	}
}

// Connect establishes a connection to targetDeviceID, trying (in order)
// its rendezvous-reported local address, an mDNS-resolved LAN address, its
// public address, a hole punch, and finally waiting for the peer to
// connect back (spec §4.8 "connect", the five-step algorithm).
func (b *Broker) Connect(ctx context.Context, targetDeviceID string) (string, error) {
	b.mu.RLock()
	initialized := b.initialized
	localPort := b.localPort
	b.mu.RUnlock()
	if !initialized {
		return "", ErrNotInitialized
	}

	if b.cfg.Rendezvous == nil {
		return "", ErrTargetNotFound
	}

	if b.log != nil {
		b.log.Infof("looking up device %s", targetDeviceID)
	}

	target := b.cfg.Rendezvous.ConnectRequest(targetDeviceID)
	if target == nil {
		return "", ErrTargetNotFound
	}

	if peerID, err := b.tryConnectToDevice(ctx, targetDeviceID, target, localPort); err == nil {
		b.cfg.Rendezvous.ClearConnectRequest(targetDeviceID)
		b.notifyConnected(peerID, targetDeviceID)
		return peerID, nil
	}

	if b.log != nil {
		b.log.Infof("direct connection failed, waiting for %s to connect back", targetDeviceID)
	}
	return b.waitForInbound(ctx, targetDeviceID)
}

// tryConnectToDevice attempts, in order: the rendezvous-reported local
// address, an mDNS-resolved LAN address (when the rendezvous did not
// report one or it's stale), the public address, and a hole punch (spec
// §4.8 step 2's "try local address first").
func (b *Broker) tryConnectToDevice(ctx context.Context, deviceID string, info *rendezvousclient.DeviceInfo, localPort int) (string, error) {
	if info.LocalAddr != nil && info.LocalAddr.IP != "" {
		if peerID, err := b.cfg.Transport.Dial(fmt.Sprintf("%s:%d", info.LocalAddr.IP, info.LocalAddr.Port)); err == nil {
			return peerID, nil
		}
	}
	if b.cfg.Discovery != nil {
		if peer := b.lookupLAN(ctx, deviceID); peer != nil {
			if peerID, err := b.cfg.Transport.Dial(fmt.Sprintf("%s:%d", peer.Host, peer.Port)); err == nil {
				return peerID, nil
			}
		}
	}

	if info.PublicAddr.IP != "" {
		if peerID, err := b.cfg.Transport.Dial(fmt.Sprintf("%s:%d", info.PublicAddr.IP, info.PublicAddr.Port)); err == nil {
			return peerID, nil
		}

		conn, err := b.cfg.Puncher.Punch(ctx, localPort, info.PublicAddr.IP, info.PublicAddr.Port)
		if err == nil {
			return b.cfg.Transport.AddConnection(conn), nil
		}
	}

	return "", ErrPeerUnreachable
}

func (b *Broker) lookupLAN(ctx context.Context, deviceID string) *discovery.PeerInfo {
	lookupCtx, cancel := context.WithTimeout(ctx, discovery.DefaultBrowseTimeout)
	defer cancel()
	peer, err := b.cfg.Discovery.Lookup(lookupCtx, deviceID)
	if err != nil {
		return nil
	}
	return peer
}

// waitForInbound polls the transport's peer set for a newly connected
// peer after a direct attempt failed, giving the target a chance to
// connect back using its own copy of the same five-step algorithm (spec
// §4.8 step 5).
func (b *Broker) waitForInbound(ctx context.Context, targetDeviceID string) (string, error) {
	initial := make(map[string]bool)
	for _, id := range b.cfg.Transport.Peers() {
		initial[id] = true
	}

	deadline := time.Now().Add(b.cfg.WaitForInbound)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			for _, id := range b.cfg.Transport.Peers() {
				if !initial[id] {
					b.notifyConnected(id, targetDeviceID)
					return id, nil
				}
			}
		}
	}

	return "", ErrPeerUnreachable
}

func (b *Broker) pollLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.closeCh:
			return
		case <-ticker.C:
			b.checkIncomingRequests()
		}
	}
}

func (b *Broker) checkIncomingRequests() {
	requests := b.cfg.Rendezvous.GetConnectRequests()

	b.mu.RLock()
	localPort := b.localPort
	b.mu.RUnlock()

	for _, req := range requests {
		if req.RequesterID == "" {
			continue
		}

		if b.log != nil {
			b.log.Infof("incoming connection request from %s", req.RequesterID)
		}

		info := &rendezvousclient.DeviceInfo{
			DeviceID:   req.RequesterInfo.DeviceID,
			PublicAddr: req.RequesterInfo.PublicAddr,
			LocalAddr:  req.RequesterInfo.LocalAddr,
		}

		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.WaitForInbound)
		peerID, err := b.tryConnectToDevice(ctx, req.RequesterID, info, localPort)
		cancel()
		if err != nil {
			continue
		}

		b.cfg.Rendezvous.ClearIncomingRequest(req.RequesterID)
		b.notifyConnected(peerID, req.RequesterID)
	}
}

func (b *Broker) notifyConnected(peerID, deviceID string) {
	if b.cfg.OnConnected != nil {
		b.cfg.OnConnected(peerID, deviceID)
	}
}

// localOutboundIP discovers the local address the OS would route
// outbound traffic from, via the connected-UDP trick (no packets are
// actually sent; spec §4.8, original_source's
// ConnectionBroker._get_local_ip).
func localOutboundIP() string {
	conn, err := net.Dial("udp4", probeAddr)
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
