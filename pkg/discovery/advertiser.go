package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// MDNSServer is the interface for mDNS service registration, allowing
// dependency injection in tests.
type MDNSServer interface {
	Shutdown()
}

// MDNSServerFactory creates MDNSServer instances.
type MDNSServerFactory interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

type zeroconfServerFactory struct{}

func (z *zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// DeviceID is this device's identifier, used as the DNS-SD instance
	// name and carried in the TXT record.
	DeviceID string

	// Fingerprint is this device's identity fingerprint (derived from its
	// device ID), carried in the TXT record (spec §4.11).
	Fingerprint string

	// Port is the peer transport's listening port.
	Port int

	// Interfaces restricts advertising to specific interfaces. If nil,
	// all interfaces are used.
	Interfaces []net.Interface

	// ServerFactory creates the underlying mDNS server. If nil, the
	// zeroconf-backed factory is used.
	ServerFactory MDNSServerFactory

	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes this device's presence over mDNS.
type Advertiser struct {
	cfg     AdvertiserConfig
	factory MDNSServerFactory
	log     logging.LeveledLogger

	mu      sync.Mutex
	server  MDNSServer
	started bool
}

// NewAdvertiser builds an Advertiser from cfg.
func NewAdvertiser(cfg AdvertiserConfig) *Advertiser {
	factory := cfg.ServerFactory
	if factory == nil {
		factory = &zeroconfServerFactory{}
	}
	a := &Advertiser{cfg: cfg, factory: factory}
	if cfg.LoggerFactory != nil {
		a.log = cfg.LoggerFactory.NewLogger("discovery")
	}
	return a
}

// Start begins advertising ServiceName with this device's TXT record.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrAlreadyStarted
	}

	txt := []string{
		fmt.Sprintf("%s=%s", TXTKeyDeviceID, a.cfg.DeviceID),
		fmt.Sprintf("%s=%s", TXTKeyFingerprint, a.cfg.Fingerprint),
	}

	server, err := a.factory.Register(a.cfg.DeviceID, ServiceName, DefaultDomain, a.cfg.Port, txt, a.cfg.Interfaces)
	if err != nil {
		return fmt.Errorf("discovery: advertise failed: %w", err)
	}

	a.server = server
	a.started = true
	if a.log != nil {
		a.log.Infof("advertising %s as %s on port %d", ServiceName, a.cfg.DeviceID, a.cfg.Port)
	}
	return nil
}

// Stop withdraws the advertisement, if running.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return ErrClosed
	}
	a.server.Shutdown()
	a.started = false
	return nil
}
