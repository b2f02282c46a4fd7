package discovery

import "testing"

func TestAdvertiserStartRegistersTXTRecord(t *testing.T) {
	factory := &mockMDNSServerFactory{}
	a := NewAdvertiser(AdvertiserConfig{
		DeviceID:      "dev-1",
		Fingerprint:   "ab:cd:ef",
		Port:          4242,
		ServerFactory: factory,
	})

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	factory.mu.Lock()
	defer factory.mu.Unlock()
	if factory.registrations != 1 {
		t.Fatalf("registrations = %d, want 1", factory.registrations)
	}
	if factory.lastInstance != "dev-1" {
		t.Errorf("instance = %q, want dev-1", factory.lastInstance)
	}

	found := map[string]bool{}
	for _, rec := range factory.lastTXT {
		found[rec] = true
	}
	if !found["device_id=dev-1"] || !found["fingerprint=ab:cd:ef"] {
		t.Errorf("TXT records = %v, missing expected entries", factory.lastTXT)
	}
}

func TestAdvertiserStartTwiceFails(t *testing.T) {
	a := NewAdvertiser(AdvertiserConfig{DeviceID: "dev-1", ServerFactory: &mockMDNSServerFactory{}})
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != ErrAlreadyStarted {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestAdvertiserStopWithoutStartFails(t *testing.T) {
	a := NewAdvertiser(AdvertiserConfig{DeviceID: "dev-1", ServerFactory: &mockMDNSServerFactory{}})
	if err := a.Stop(); err != ErrClosed {
		t.Errorf("Stop() error = %v, want ErrClosed", err)
	}
}

func TestAdvertiserStopShutsDownServer(t *testing.T) {
	a := NewAdvertiser(AdvertiserConfig{DeviceID: "dev-1", ServerFactory: &mockMDNSServerFactory{}})
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case <-a.server.(*mockMDNSServer).shutdownCh:
	default:
		t.Error("Stop() did not shut down the underlying mDNS server")
	}
}
