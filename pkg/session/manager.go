package session

import (
	"sync"
	"time"

	"github.com/ghostline-signal/ghostline/pkg/crypto"
	"github.com/ghostline-signal/ghostline/pkg/store"
	"github.com/google/uuid"
)

// DefaultLifetime is the default session key lifetime (spec §3 "Session
// key", "default lifetime 24h").
const DefaultLifetime = 24 * time.Hour

// Config configures a Manager.
type Config struct {
	// SelfDeviceID is embedded as the "from" field of every outbound
	// envelope. Required.
	SelfDeviceID string

	// Store persists session keys and message ciphertext. Required.
	Store *store.Store

	// SessionLifetime overrides DefaultLifetime when non-zero.
	SessionLifetime time.Duration

	// OnMessage is called for every successfully decrypted inbound
	// message (spec §4.9 "Emit message(peer_id, plaintext, timestamp)").
	OnMessage func(peerID string, plaintext []byte, timestamp time.Time)

	// OnUndecryptable is called when an inbound envelope arrives for a
	// peer with no known session key.
	OnUndecryptable func(peerID, sessionID string)
}

func (c *Config) applyDefaults() {
	if c.SessionLifetime <= 0 {
		c.SessionLifetime = DefaultLifetime
	}
}

// Manager binds each peer_id to the in-memory session key that is the
// authoritative copy; the store holds a durable mirror for
// offline-retrieved decryption (spec §4.9).
type Manager struct {
	cfg Config

	mu   sync.RWMutex
	keys map[string][]byte // peer_id -> session key
}

// New builds a Manager from cfg.
func New(cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:  cfg,
		keys: make(map[string][]byte),
	}
}

// Outbound encrypts plaintext for peerID and returns the serialized wire
// envelope ready to hand to the peer transport (spec §4.9 "Outbound
// message"). A new session_id is minted for every call; the underlying
// session key is created once per peer and reused thereafter (spec §9
// "Open question — session reuse").
func (m *Manager) Outbound(peerID string, plaintext []byte) ([]byte, error) {
	key, created := m.getOrCreateKey(peerID)
	sessionID := uuid.NewString()

	if created {
		if err := m.cfg.Store.StoreSession(sessionID, peerID, key, time.Now().Add(m.cfg.SessionLifetime)); err != nil {
			return nil, err
		}
	}

	padded := crypto.Pad(plaintext)
	ciphertext, err := crypto.Encrypt(padded, key)
	if err != nil {
		return nil, err
	}

	envelope, err := encodeEnvelope(sessionID, m.cfg.SelfDeviceID, ciphertext)
	if err != nil {
		return nil, err
	}

	if _, err := m.cfg.Store.StoreMessage(peerID, ciphertext, store.Sent, sessionID, true); err != nil {
		return nil, err
	}

	return envelope, nil
}

// Inbound parses and decrypts a payload delivered by the peer transport
// (spec §4.9 "Inbound message"). A missing session key is reported as
// ErrUndecryptable after the ciphertext is durably persisted; decryption
// failures never propagate past this call — the caller's connection stays
// alive either way.
func (m *Manager) Inbound(peerID string, payload []byte) ([]byte, error) {
	sessionID, _, ciphertext, err := decodeEnvelope(payload)
	if err != nil {
		return nil, err
	}

	key, ok := m.getKey(peerID)
	if !ok {
		if _, err := m.cfg.Store.StoreMessage(peerID, ciphertext, store.Received, sessionID, false); err != nil {
			return nil, err
		}
		if m.cfg.OnUndecryptable != nil {
			m.cfg.OnUndecryptable(peerID, sessionID)
		}
		return nil, ErrUndecryptable
	}

	padded, err := crypto.Decrypt(ciphertext, key)
	if err != nil {
		m.cfg.Store.StoreMessage(peerID, ciphertext, store.Received, sessionID, false)
		return nil, err
	}
	plaintext, err := crypto.Unpad(padded)
	if err != nil {
		m.cfg.Store.StoreMessage(peerID, ciphertext, store.Received, sessionID, false)
		return nil, err
	}

	m.cfg.Store.UpdatePeerLastSeen(peerID)
	if _, err := m.cfg.Store.StoreMessage(peerID, ciphertext, store.Received, sessionID, true); err != nil {
		return nil, err
	}

	now := time.Now()
	if m.cfg.OnMessage != nil {
		m.cfg.OnMessage(peerID, plaintext, now)
	}
	return plaintext, nil
}

// BindKey installs a known session key for peerID, e.g. one exchanged
// through an out-of-band channel. Mostly useful for tests and for future
// key-exchange handshakes that want to seed the session manager directly.
func (m *Manager) BindKey(peerID string, key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[peerID] = key
}

// Forget drops the in-memory session key for peerID.
func (m *Manager) Forget(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, peerID)
}

func (m *Manager) getKey(peerID string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[peerID]
	return key, ok
}

func (m *Manager) getOrCreateKey(peerID string) (key []byte, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key, ok := m.keys[peerID]; ok {
		return key, false
	}

	key, err := crypto.NewSessionKey()
	if err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	m.keys[peerID] = key
	return key, true
}
