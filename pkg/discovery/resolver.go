package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// MDNSResolver is the interface for mDNS service resolution, allowing
// dependency injection in tests.
type MDNSResolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Browse(ctx, service, domain, entries)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// MDNSResolver is the underlying resolver implementation. If nil,
	// the zeroconf-backed resolver is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout bounds a Browse call whose context has no deadline.
	BrowseTimeout time.Duration
}

func (c *ResolverConfig) applyDefaults() error {
	if c.BrowseTimeout <= 0 {
		c.BrowseTimeout = DefaultBrowseTimeout
	}
	if c.MDNSResolver == nil {
		r, err := newZeroconfResolver()
		if err != nil {
			return err
		}
		c.MDNSResolver = r
	}
	return nil
}

// Resolver discovers Ghostline peers on the local network via mDNS.
type Resolver struct {
	cfg ResolverConfig
}

// NewResolver builds a Resolver from cfg.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &Resolver{cfg: cfg}, nil
}

// Browse discovers peers advertising ServiceName, streaming them on the
// returned channel until ctx is done or the browse timeout expires.
func (r *Resolver) Browse(ctx context.Context) (<-chan PeerInfo, error) {
	cancel := func() {}
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, r.cfg.BrowseTimeout)
	}

	results := make(chan PeerInfo)
	entries := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer cancel()
		defer close(results)
		go func() {
			defer close(entries)
			r.cfg.MDNSResolver.Browse(ctx, ServiceName, DefaultDomain, entries)
		}()

		for entry := range entries {
			select {
			case results <- entryToPeerInfo(entry):
			case <-ctx.Done():
				return
			}
		}
	}()

	return results, nil
}

// Lookup discovers peers and returns the first one whose device_id
// matches deviceID, or ErrServiceNotFound once the browse completes
// without a match.
func (r *Resolver) Lookup(ctx context.Context, deviceID string) (*PeerInfo, error) {
	peers, err := r.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for p := range peers {
		if p.DeviceID == deviceID {
			return &p, nil
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return nil, ErrTimeout
	}
	return nil, ErrServiceNotFound
}

func entryToPeerInfo(entry *zeroconf.ServiceEntry) PeerInfo {
	p := PeerInfo{
		Host: entry.HostName,
		Port: entry.Port,
	}
	for _, ip := range entry.AddrIPv4 {
		p.IPs = append(p.IPs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		p.IPs = append(p.IPs, ip.String())
	}
	for _, rec := range entry.Text {
		k, v, ok := strings.Cut(rec, "=")
		if !ok {
			continue
		}
		switch k {
		case TXTKeyDeviceID:
			p.DeviceID = v
		case TXTKeyFingerprint:
			p.Fingerprint = v
		}
	}
	return p
}
