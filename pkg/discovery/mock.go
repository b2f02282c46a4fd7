package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
)

// mockMDNSResolver serves pre-registered entries without real network I/O.
type mockMDNSResolver struct {
	mu      sync.Mutex
	entries []*zeroconf.ServiceEntry
}

func newMockMDNSResolver() *mockMDNSResolver {
	return &mockMDNSResolver{}
}

func (m *mockMDNSResolver) add(entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func (m *mockMDNSResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	m.mu.Lock()
	snapshot := make([]*zeroconf.ServiceEntry, len(m.entries))
	copy(snapshot, m.entries)
	m.mu.Unlock()

	for _, e := range snapshot {
		select {
		case entries <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// mockMDNSServer is the MDNSServer returned by mockMDNSServerFactory.
type mockMDNSServer struct {
	shutdownCh chan struct{}
}

func (m *mockMDNSServer) Shutdown() {
	close(m.shutdownCh)
}

// mockMDNSServerFactory records registrations instead of touching the
// network, for Advertiser tests.
type mockMDNSServerFactory struct {
	mu            sync.Mutex
	registrations int
	lastInstance  string
	lastTXT       []string
}

func (f *mockMDNSServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrations++
	f.lastInstance = instance
	f.lastTXT = txt
	return &mockMDNSServer{shutdownCh: make(chan struct{})}, nil
}
