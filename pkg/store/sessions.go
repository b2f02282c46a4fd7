package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is a persisted copy of an ephemeral session key (spec §3
// "Session key"). created_at is set to the time of StoreSession and the
// store does not check it against expires_at; the default 24h lifetime is
// applied by the caller (pkg/session), not by the store.
type Session struct {
	SessionID string
	PeerID    string
	Key       []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// StoreSession upserts a session key record.
func (s *Store) StoreSession(sessionID, peerID string, key []byte, expiresAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, peer_id, session_key, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   peer_id      = excluded.peer_id,
		   session_key  = excluded.session_key,
		   created_at   = excluded.created_at,
		   expires_at   = excluded.expires_at`,
		sessionID, peerID, key, unixTimestamp(time.Now()), unixTimestamp(expiresAt),
	)
	if err != nil {
		return fmt.Errorf("store: upsert session: %w", err)
	}
	return nil
}

// GetSession returns a session record, or ErrSessionNotFound if absent.
func (s *Store) GetSession(sessionID string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT session_id, peer_id, session_key, created_at, expires_at
		 FROM sessions WHERE session_id = ?`,
		sessionID,
	)

	var (
		sess      Session
		createdAt float64
		expiresAt float64
	)
	err := row.Scan(&sess.SessionID, &sess.PeerID, &sess.Key, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan session: %w", err)
	}
	sess.CreatedAt = fromUnixTimestamp(createdAt)
	sess.ExpiresAt = fromUnixTimestamp(expiresAt)
	return &sess, nil
}

// CleanupExpiredSessions deletes every session whose expires_at has
// passed and returns how many rows were removed.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, unixTimestamp(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("store: cleanup expired sessions: %w", err)
	}
	return res.RowsAffected()
}
