package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func entryWithTXT(instance string, port int, deviceID, fingerprint string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{}
	e.Instance = instance
	e.HostName = instance + ".local."
	e.Port = port
	e.Text = []string{
		TXTKeyDeviceID + "=" + deviceID,
		TXTKeyFingerprint + "=" + fingerprint,
	}
	return e
}

func TestBrowseReturnsRegisteredPeers(t *testing.T) {
	mock := newMockMDNSResolver()
	mock.add(entryWithTXT("dev-1", 4242, "dev-1", "fp-1"))
	mock.add(entryWithTXT("dev-2", 4243, "dev-2", "fp-2"))

	r, err := NewResolver(ResolverConfig{MDNSResolver: mock, BrowseTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	peers, err := r.Browse(ctx)
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}

	var got []PeerInfo
	for p := range peers {
		got = append(got, p)
	}
	if len(got) != 2 {
		t.Fatalf("Browse() returned %d peers, want 2", len(got))
	}
	if got[0].DeviceID != "dev-1" || got[0].Port != 4242 {
		t.Errorf("peer[0] = %+v", got[0])
	}
}

func TestLookupFindsMatchingDevice(t *testing.T) {
	mock := newMockMDNSResolver()
	mock.add(entryWithTXT("dev-1", 4242, "dev-1", "fp-1"))
	mock.add(entryWithTXT("dev-2", 4243, "dev-2", "fp-2"))

	r, err := NewResolver(ResolverConfig{MDNSResolver: mock, BrowseTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	peer, err := r.Lookup(context.Background(), "dev-2")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if peer.Fingerprint != "fp-2" {
		t.Errorf("Lookup() fingerprint = %q, want fp-2", peer.Fingerprint)
	}
}

func TestLookupNoMatchReturnsNotFound(t *testing.T) {
	mock := newMockMDNSResolver()
	mock.add(entryWithTXT("dev-1", 4242, "dev-1", "fp-1"))

	r, err := NewResolver(ResolverConfig{MDNSResolver: mock, BrowseTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	if _, err := r.Lookup(context.Background(), "nobody"); err != ErrServiceNotFound {
		t.Errorf("Lookup() error = %v, want ErrServiceNotFound", err)
	}
}
