package rendezvousclient

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ghostline-signal/ghostline/pkg/rendezvous"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := rendezvous.New(rendezvous.Config{})
	s := rendezvous.NewServer(r, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestRegisterLookupRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	producer := New(Config{ServerURL: ts.URL, DeviceID: "dev-a"})
	if !producer.Register(Addr{IP: "1.2.3.4", Port: 9000}, nil) {
		t.Fatal("Register() = false, want true")
	}

	consumer := New(Config{ServerURL: ts.URL, DeviceID: "dev-b"})
	info := consumer.Lookup("dev-a")
	if info == nil {
		t.Fatal("Lookup() = nil, want a record")
	}
	if info.PublicAddr.IP != "1.2.3.4" || info.PublicAddr.Port != 9000 {
		t.Errorf("Lookup() addr = %+v, want {1.2.3.4 9000}", info.PublicAddr)
	}
}

func TestLookupUnknownDeviceReturnsNil(t *testing.T) {
	ts := newTestServer(t)
	c := New(Config{ServerURL: ts.URL, DeviceID: "dev-a"})

	if info := c.Lookup("nobody"); info != nil {
		t.Errorf("Lookup() = %+v, want nil", info)
	}
}

func TestUnreachableServerSwallowsFailures(t *testing.T) {
	c := New(Config{ServerURL: "http://127.0.0.1:1", DeviceID: "dev-a", RequestTimeout: 200 * time.Millisecond})

	if c.Register(Addr{IP: "1.1.1.1", Port: 1}, nil) {
		t.Error("Register() against unreachable server = true, want false")
	}
	if info := c.Lookup("dev-b"); info != nil {
		t.Errorf("Lookup() against unreachable server = %+v, want nil", info)
	}
	if c.Heartbeat(nil, nil) {
		t.Error("Heartbeat() against unreachable server = true, want false")
	}
	if info := c.ConnectRequest("target"); info != nil {
		t.Errorf("ConnectRequest() against unreachable server = %+v, want nil", info)
	}
	if reqs := c.GetConnectRequests(); reqs != nil {
		t.Errorf("GetConnectRequests() against unreachable server = %+v, want nil", reqs)
	}
	if c.ClearConnectRequest("target") {
		t.Error("ClearConnectRequest() against unreachable server = true, want false")
	}
}

func TestConnectRequestFlow(t *testing.T) {
	ts := newTestServer(t)

	requester := New(Config{ServerURL: ts.URL, DeviceID: "requester"})
	target := New(Config{ServerURL: ts.URL, DeviceID: "target"})

	requester.Register(Addr{IP: "1.1.1.1", Port: 1}, nil)
	target.Register(Addr{IP: "2.2.2.2", Port: 2}, nil)

	info := requester.ConnectRequest("target")
	if info == nil {
		t.Fatal("ConnectRequest() = nil, want target record")
	}

	reqs := target.GetConnectRequests()
	if len(reqs) != 1 || reqs[0].RequesterID != "requester" {
		t.Fatalf("GetConnectRequests() = %+v, want one pending from requester", reqs)
	}

	if !requester.ClearConnectRequest("target") {
		t.Error("ClearConnectRequest() = false, want true")
	}
	if reqs := target.GetConnectRequests(); len(reqs) != 0 {
		t.Errorf("GetConnectRequests() after clear = %+v, want none", reqs)
	}
}

func TestClearIncomingRequestClearsTargetSideEntry(t *testing.T) {
	ts := newTestServer(t)

	requester := New(Config{ServerURL: ts.URL, DeviceID: "requester"})
	target := New(Config{ServerURL: ts.URL, DeviceID: "target"})

	requester.Register(Addr{IP: "1.1.1.1", Port: 1}, nil)
	target.Register(Addr{IP: "2.2.2.2", Port: 2}, nil)

	if info := requester.ConnectRequest("target"); info == nil {
		t.Fatal("ConnectRequest() = nil, want target record")
	}

	// The requester-side clear must not remove the target's pending
	// entry: it sends the opposite (target_id, requester_id) pairing.
	if target.ClearConnectRequest("requester") {
		t.Error("ClearConnectRequest() on target's client cleared requester's own entry, want false")
	}
	if reqs := target.GetConnectRequests(); len(reqs) != 1 {
		t.Fatalf("GetConnectRequests() after mismatched clear = %+v, want still pending", reqs)
	}

	if !target.ClearIncomingRequest("requester") {
		t.Error("ClearIncomingRequest() = false, want true")
	}
	if reqs := target.GetConnectRequests(); len(reqs) != 0 {
		t.Errorf("GetConnectRequests() after ClearIncomingRequest = %+v, want none", reqs)
	}
}

func TestHeartbeatLoopStartStop(t *testing.T) {
	ts := newTestServer(t)
	c := New(Config{ServerURL: ts.URL, DeviceID: "dev-a", HeartbeatInterval: 20 * time.Millisecond})
	c.Register(Addr{IP: "1.2.3.4", Port: 1}, nil)

	c.StartHeartbeat(Addr{IP: "1.2.3.4", Port: 1}, nil)
	time.Sleep(100 * time.Millisecond)
	c.StopHeartbeat()

	// Stopping twice must not panic or deadlock.
	c.StopHeartbeat()
}

func TestUnregister(t *testing.T) {
	ts := newTestServer(t)
	c := New(Config{ServerURL: ts.URL, DeviceID: "dev-a"})
	c.Register(Addr{IP: "1.2.3.4", Port: 1}, nil)

	if !c.Unregister() {
		t.Fatal("Unregister() = false, want true")
	}
	if info := c.Lookup("dev-a"); info != nil {
		t.Errorf("Lookup() after Unregister() = %+v, want nil", info)
	}
}
