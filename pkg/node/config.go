package node

import (
	"time"

	"github.com/pion/logging"

	"github.com/ghostline-signal/ghostline/pkg/natpunch"
)

// DefaultListenAddr lets the OS assign an ephemeral port.
const DefaultListenAddr = ":0"

// Config holds all configuration for a Node.
type Config struct {
	// DataDir is the directory holding identity.json, the key pair, and
	// the SQLite store. Required.
	DataDir string

	// DeviceName seeds a freshly-created identity (spec §4.10). Ignored
	// once an identity already exists in DataDir.
	DeviceName string

	// ListenAddr is the peer transport's listen address. Defaults to
	// DefaultListenAddr.
	ListenAddr string

	// RendezvousURL, if set, enables registration with a rendezvous
	// server and automatic connection brokering (spec §4.6-§4.8). If
	// empty, Connect is unavailable and peers must be dialed directly.
	RendezvousURL string

	// EnableLANDiscovery advertises and browses for peers over mDNS
	// (spec §4.11), used as a local-address source ahead of hole
	// punching when a rendezvous is also configured.
	EnableLANDiscovery bool

	// STUNServers overrides natpunch.DefaultSTUNServers for public
	// address discovery.
	STUNServers []string

	// Puncher selects the hole-punch strategy the broker uses. Defaults
	// to natpunch.SimultaneousTCP.
	Puncher natpunch.Puncher

	// SessionLifetime overrides session.DefaultLifetime.
	SessionLifetime time.Duration

	// OnStateChanged is called on every lifecycle transition.
	OnStateChanged func(State)

	// OnMessage is called for every successfully decrypted inbound
	// message (spec §4.9).
	OnMessage func(peerID string, plaintext []byte, timestamp time.Time)

	// OnPeerConnected is called whenever a peer connection is
	// established, directly or through the broker.
	OnPeerConnected func(peerID, deviceID string)

	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirRequired
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
}
