package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Message is a stored, still-encrypted message (spec §3 "Stored message").
// Plaintext is never persisted; Ciphertext is the wire ciphertext as-is.
type Message struct {
	ID         int64
	PeerID     string
	Ciphertext []byte
	Timestamp  time.Time
	Direction  Direction
	SessionID  string // empty when absent
	Delivered  bool
}

// StoreMessage inserts a message and returns its assigned id.
func (s *Store) StoreMessage(peerID string, ciphertext []byte, direction Direction, sessionID string, delivered bool) (int64, error) {
	var sessionArg interface{}
	if sessionID != "" {
		sessionArg = sessionID
	}

	res, err := s.db.Exec(
		`INSERT INTO messages (peer_id, content, timestamp, direction, session_id, delivered)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		peerID, ciphertext, unixTimestamp(time.Now()), string(direction), sessionArg, boolToInt(delivered),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert message: %w", err)
	}
	return res.LastInsertId()
}

// GetMessages returns up to limit messages for peerID in chronological
// (ascending timestamp) order.
func (s *Store) GetMessages(peerID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, content, timestamp, direction, session_id, delivered
		 FROM messages
		 WHERE peer_id = ?
		 ORDER BY timestamp DESC
		 LIMIT ?`,
		peerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query messages: %w", err)
	}
	defer rows.Close()

	var descending []Message
	for rows.Next() {
		m, err := scanMessage(rows, peerID)
		if err != nil {
			return nil, err
		}
		descending = append(descending, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chronological := make([]Message, len(descending))
	for i, m := range descending {
		chronological[len(descending)-1-i] = m
	}
	return chronological, nil
}

// SearchMessages scans a peer's stored ciphertext for substr and returns
// matching messages in chronological order. Supplemental operation carried
// over from the original archive interface; since content is encrypted,
// this only matches opaque ciphertext bytes, not plaintext — it exists so
// an external archive collaborator can page by a ciphertext fingerprint
// rather than re-deriving SQL against the schema directly.
func (s *Store) SearchMessages(peerID, substr string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, content, timestamp, direction, session_id, delivered
		 FROM messages
		 WHERE peer_id = ? AND instr(content, ?) > 0
		 ORDER BY timestamp ASC`,
		peerID, substr,
	)
	if err != nil {
		return nil, fmt.Errorf("store: search messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows, peerID)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(rows *sql.Rows, peerID string) (Message, error) {
	var (
		m         Message
		ts        float64
		sessionID sql.NullString
		delivered int
	)
	if err := rows.Scan(&m.ID, &m.Ciphertext, &ts, &m.Direction, &sessionID, &delivered); err != nil {
		return Message{}, fmt.Errorf("store: scan message: %w", err)
	}
	m.PeerID = peerID
	m.Timestamp = fromUnixTimestamp(ts)
	m.SessionID = sessionID.String
	m.Delivered = delivered != 0
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
