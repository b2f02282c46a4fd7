package broker

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ghostline-signal/ghostline/pkg/rendezvous"
	"github.com/ghostline-signal/ghostline/pkg/rendezvousclient"
	"github.com/ghostline-signal/ghostline/pkg/transport"
)

// unreachableSTUN forces DiscoverPublicAddress to fail fast in tests so
// Initialize falls back to the local address instead of hanging on real
// network access.
var unreachableSTUN = []string{"127.0.0.1:1"}

func newTestRendezvous(t *testing.T) string {
	t.Helper()
	r := rendezvous.New(rendezvous.Config{})
	s := rendezvous.NewServer(r, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func newTestBroker(t *testing.T, deviceID, rendezvousURL string) (*Broker, *transport.Transport) {
	t.Helper()

	// Listens on every interface, including the outbound-facing address
	// localOutboundIP reports, so a peer dialing that address over the
	// loopback path in this test actually reaches the listener.
	tr, err := transport.New(transport.Config{
		ListenAddr: "0.0.0.0:0",
		OnMessage:  func(string, []byte) {},
	})
	if err != nil {
		t.Fatalf("transport.New() error = %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("transport.Start() error = %v", err)
	}
	t.Cleanup(func() { tr.Stop() })

	rc := rendezvousclient.New(rendezvousclient.Config{
		ServerURL:         rendezvousURL,
		DeviceID:          deviceID,
		HeartbeatInterval: time.Hour,
	})

	b := New(Config{
		DeviceID:     deviceID,
		Transport:    tr,
		Rendezvous:   rc,
		STUNServers:  unreachableSTUN,
		PollInterval: 50 * time.Millisecond,
	})
	return b, tr
}

func TestInitializeRegistersWithRendezvous(t *testing.T) {
	url := newTestRendezvous(t)
	b, _ := newTestBroker(t, "dev-a", url)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer b.Shutdown()

	if err := b.Initialize(ctx); err != ErrAlreadyInitialized {
		t.Errorf("second Initialize() error = %v, want ErrAlreadyInitialized", err)
	}

	info := b.cfg.Rendezvous.Lookup("dev-a")
	if info == nil {
		t.Fatal("Lookup(\"dev-a\") = nil, want a registered record")
	}
}

func TestConnectBeforeInitializeFails(t *testing.T) {
	url := newTestRendezvous(t)
	b, _ := newTestBroker(t, "dev-a", url)

	if _, err := b.Connect(context.Background(), "dev-b"); err != ErrNotInitialized {
		t.Errorf("Connect() before Initialize error = %v, want ErrNotInitialized", err)
	}
}

func TestConnectUnknownTargetFails(t *testing.T) {
	url := newTestRendezvous(t)
	b, _ := newTestBroker(t, "dev-a", url)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer b.Shutdown()

	if _, err := b.Connect(ctx, "ghost"); err != ErrTargetNotFound {
		t.Errorf("Connect() to unregistered target error = %v, want ErrTargetNotFound", err)
	}
}

// TestConnectDialsLocalAddress exercises the full two-broker happy path: A
// registers, B registers, A connects to B using B's rendezvous-reported
// local address (the transport's own loopback listener), without ever
// touching STUN or hole punching.
func TestConnectDialsLocalAddress(t *testing.T) {
	url := newTestRendezvous(t)

	a, _ := newTestBroker(t, "dev-a", url)
	b, trB := newTestBroker(t, "dev-b", url)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := a.Initialize(ctx); err != nil {
		t.Fatalf("a.Initialize() error = %v", err)
	}
	defer a.Shutdown()
	if err := b.Initialize(ctx); err != nil {
		t.Fatalf("b.Initialize() error = %v", err)
	}
	defer b.Shutdown()

	connected := make(chan string, 1)
	a.cfg.OnConnected = func(peerID, deviceID string) {
		if deviceID == "dev-b" {
			connected <- peerID
		}
	}

	peerID, err := a.Connect(ctx, "dev-b")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if peerID == "" {
		t.Fatal("Connect() returned empty peer id")
	}

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("OnConnected callback never fired")
	}

	if peers := trB.Peers(); len(peers) != 1 {
		t.Errorf("target transport peers = %v, want exactly one inbound connection", peers)
	}
}

func TestLocalOutboundIPReturnsAnAddress(t *testing.T) {
	if ip := localOutboundIP(); ip == "" {
		t.Error("localOutboundIP() = \"\", want a non-empty address")
	}
}
