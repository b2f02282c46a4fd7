package store

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddPeerPreservesFirstSeen(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddPeer("1.2.3.4:9000", []byte("pub1"), "Alice", 0); err != nil {
		t.Fatalf("AddPeer() error = %v", err)
	}
	first, err := s.GetPeer("1.2.3.4:9000")
	if err != nil {
		t.Fatalf("GetPeer() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := s.AddPeer("1.2.3.4:9000", []byte("pub2"), "Alice Renamed", 1); err != nil {
		t.Fatalf("AddPeer() second error = %v", err)
	}
	second, err := s.GetPeer("1.2.3.4:9000")
	if err != nil {
		t.Fatalf("GetPeer() second error = %v", err)
	}

	if !first.FirstSeen.Equal(second.FirstSeen) {
		t.Errorf("first_seen changed across upsert: %v vs %v", first.FirstSeen, second.FirstSeen)
	}
	if second.DisplayName != "Alice Renamed" {
		t.Errorf("DisplayName = %q, want %q", second.DisplayName, "Alice Renamed")
	}
	if second.TrustLevel != 1 {
		t.Errorf("TrustLevel = %d, want 1", second.TrustLevel)
	}
	if !bytes.Equal(second.PublicKey, []byte("pub2")) {
		t.Errorf("PublicKey = %q, want %q", second.PublicKey, "pub2")
	}
}

func TestGetPeerNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetPeer("nobody:1"); err != ErrPeerNotFound {
		t.Errorf("GetPeer() error = %v, want ErrPeerNotFound", err)
	}
}

func TestStoreMessageOrdering(t *testing.T) {
	s := newTestStore(t)
	peerID := "5.6.7.8:1234"

	for i := 0; i < 3; i++ {
		if _, err := s.StoreMessage(peerID, []byte{byte(i)}, Sent, "", false); err != nil {
			t.Fatalf("StoreMessage() error = %v", err)
		}
	}

	messages, err := s.GetMessages(peerID, 100)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("GetMessages() returned %d messages, want 3", len(messages))
	}
	for i, m := range messages {
		if m.Ciphertext[0] != byte(i) {
			t.Errorf("GetMessages()[%d] out of chronological order", i)
		}
	}
}

func TestGetMessagesRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	peerID := "peer"
	for i := 0; i < 5; i++ {
		if _, err := s.StoreMessage(peerID, []byte{byte(i)}, Received, "", false); err != nil {
			t.Fatalf("StoreMessage() error = %v", err)
		}
	}

	messages, err := s.GetMessages(peerID, 2)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("GetMessages() returned %d messages, want 2", len(messages))
	}
	// Most recent two, in chronological order.
	if messages[0].Ciphertext[0] != 3 || messages[1].Ciphertext[0] != 4 {
		t.Errorf("GetMessages() with limit returned wrong slice: %v", messages)
	}
}

func TestSearchMessages(t *testing.T) {
	s := newTestStore(t)
	peerID := "peer"
	if _, err := s.StoreMessage(peerID, []byte("needle-in-the-haystack"), Sent, "", false); err != nil {
		t.Fatalf("StoreMessage() error = %v", err)
	}
	if _, err := s.StoreMessage(peerID, []byte("nothing here"), Sent, "", false); err != nil {
		t.Fatalf("StoreMessage() error = %v", err)
	}

	results, err := s.SearchMessages(peerID, "needle")
	if err != nil {
		t.Fatalf("SearchMessages() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("SearchMessages() returned %d results, want 1", len(results))
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := s.StoreSession("sess-1", "peer", []byte("key-material-32-bytes-long!!!!!"), expiresAt); err != nil {
		t.Fatalf("StoreSession() error = %v", err)
	}

	got, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.PeerID != "peer" {
		t.Errorf("PeerID = %q, want %q", got.PeerID, "peer")
	}
	if !got.CreatedAt.Before(got.ExpiresAt) {
		t.Error("CreatedAt is not before ExpiresAt")
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	s := newTestStore(t)

	if err := s.StoreSession("expired", "peer", []byte("k"), time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("StoreSession() error = %v", err)
	}
	if err := s.StoreSession("active", "peer", []byte("k"), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("StoreSession() error = %v", err)
	}

	removed, err := s.CleanupExpiredSessions()
	if err != nil {
		t.Fatalf("CleanupExpiredSessions() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("CleanupExpiredSessions() removed = %d, want 1", removed)
	}

	if _, err := s.GetSession("expired"); err != ErrSessionNotFound {
		t.Errorf("GetSession(expired) error = %v, want ErrSessionNotFound", err)
	}
	if _, err := s.GetSession("active"); err != nil {
		t.Errorf("GetSession(active) error = %v, want nil", err)
	}
}

func TestListPeersPagination(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		if err := s.AddPeer(id, []byte("pub"), "", 0); err != nil {
			t.Fatalf("AddPeer() error = %v", err)
		}
	}

	page, err := s.ListPeers(2, 0)
	if err != nil {
		t.Fatalf("ListPeers() error = %v", err)
	}
	if len(page) != 2 {
		t.Errorf("ListPeers() returned %d peers, want 2", len(page))
	}
}
