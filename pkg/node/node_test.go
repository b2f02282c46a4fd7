package node

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghostline-signal/ghostline/pkg/rendezvous"
)

func newTestRendezvous(t *testing.T) string {
	t.Helper()
	r := rendezvous.New(rendezvous.Config{})
	s := rendezvous.NewServer(r, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func newTestNode(t *testing.T, name, rendezvousURL string) *Node {
	t.Helper()
	n, err := New(Config{
		DataDir:       filepath.Join(t.TempDir(), name),
		DeviceName:    name,
		ListenAddr:    "0.0.0.0:0",
		RendezvousURL: rendezvousURL,
		STUNServers:   []string{"127.0.0.1:1"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return n
}

func TestNewLoadsIdentityKeysAndStore(t *testing.T) {
	n := newTestNode(t, "alice", "")
	if n.DeviceID() == "" {
		t.Error("DeviceID() is empty")
	}
	if n.Fingerprint() == "" {
		t.Error("Fingerprint() is empty")
	}
	pub, err := n.ExportPublicKey()
	if err != nil {
		t.Fatalf("ExportPublicKey() error = %v", err)
	}
	if len(pub) == 0 {
		t.Error("ExportPublicKey() returned no data")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	n := newTestNode(t, "bob", "")
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if n.State() != StateRunning {
		t.Errorf("State() = %v, want Running", n.State())
	}
	if err := n.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	if err := n.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if n.State() != StateStopped {
		t.Errorf("State() = %v, want Stopped", n.State())
	}
	if err := n.Stop(); err != ErrAlreadyStopped {
		t.Errorf("second Stop() error = %v, want ErrAlreadyStopped", err)
	}
}

func TestConnectWithoutRendezvousFails(t *testing.T) {
	n := newTestNode(t, "carol", "")
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Stop()

	if _, err := n.Connect(context.Background(), "someone"); err != ErrNoBroker {
		t.Errorf("Connect() error = %v, want ErrNoBroker", err)
	}
}

// TestDialAndSendMessageRoundTrip exercises the full send path between two
// directly-dialed nodes: session encryption, transport framing, and
// decrypted delivery via OnMessage.
func TestDialAndSendMessageRoundTrip(t *testing.T) {
	received := make(chan string, 1)

	a := newTestNode(t, "dial-a", "")
	bCfg := Config{
		DataDir:    filepath.Join(t.TempDir(), "dial-b"),
		DeviceName: "dial-b",
		ListenAddr: "127.0.0.1:0",
		OnMessage: func(peerID string, plaintext []byte, _ time.Time) {
			received <- string(plaintext)
		},
	}
	b, err := New(bCfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("a.Start() error = %v", err)
	}
	defer a.Stop()
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("b.Start() error = %v", err)
	}
	defer b.Stop()

	peerID, err := a.Dial(b.tr.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if err := a.SendMessage(peerID, []byte("hello from a")); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "hello from a" {
			t.Errorf("received message = %q, want %q", got, "hello from a")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never arrived")
	}
}

func TestAddPeerRejectsInvalidPublicKey(t *testing.T) {
	n := newTestNode(t, "dave", "")
	if err := n.AddPeer("1.2.3.4:9000", []byte("not a pem key"), "Eve"); err == nil {
		t.Error("AddPeer() with invalid key = nil error, want failure")
	}
}

func TestAddPeerAcceptsExportedPublicKey(t *testing.T) {
	a := newTestNode(t, "frank-a", "")
	b := newTestNode(t, "frank-b", "")

	pub, err := b.ExportPublicKey()
	if err != nil {
		t.Fatalf("ExportPublicKey() error = %v", err)
	}

	if err := a.AddPeer(b.DeviceID(), pub, "Frank B"); err != nil {
		t.Fatalf("AddPeer() error = %v", err)
	}
}

func TestConnectResolvesThroughRendezvous(t *testing.T) {
	url := newTestRendezvous(t)

	a := newTestNode(t, "rv-a", url)
	b := newTestNode(t, "rv-b", url)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("a.Start() error = %v", err)
	}
	defer a.Stop()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("b.Start() error = %v", err)
	}
	defer b.Stop()

	peerID, err := a.Connect(ctx, b.DeviceID())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if peerID == "" {
		t.Error("Connect() returned empty peer id")
	}
}
