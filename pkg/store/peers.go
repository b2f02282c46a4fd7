package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Peer is a known contact (spec §3 "Peer record"). PeerID is the live
// transport endpoint string "host:port".
type Peer struct {
	PeerID      string
	DisplayName string // empty when unset
	PublicKey   []byte
	FirstSeen   time.Time
	LastSeen    time.Time
	TrustLevel  int
}

// AddPeer upserts a peer record, preserving the original first_seen on
// update (spec §4.4 "add_peer upserts, preserving the original first_seen").
func (s *Store) AddPeer(peerID string, publicKey []byte, displayName string, trustLevel int) error {
	now := unixTimestamp(time.Now())

	var displayArg interface{}
	if displayName != "" {
		displayArg = displayName
	}

	_, err := s.db.Exec(
		`INSERT INTO peers (peer_id, display_name, public_key, first_seen, last_seen, trust_level)
		 VALUES (?, ?, ?,
		         COALESCE((SELECT first_seen FROM peers WHERE peer_id = ?), ?),
		         ?, ?)
		 ON CONFLICT(peer_id) DO UPDATE SET
		   display_name = excluded.display_name,
		   public_key   = excluded.public_key,
		   last_seen    = excluded.last_seen,
		   trust_level  = excluded.trust_level`,
		peerID, displayArg, publicKey, peerID, now, now, trustLevel,
	)
	if err != nil {
		return fmt.Errorf("store: upsert peer: %w", err)
	}
	return nil
}

// GetPeer returns a single peer record, or ErrPeerNotFound if absent.
func (s *Store) GetPeer(peerID string) (*Peer, error) {
	row := s.db.QueryRow(
		`SELECT peer_id, display_name, public_key, first_seen, last_seen, trust_level
		 FROM peers WHERE peer_id = ?`,
		peerID,
	)
	p, err := scanPeer(row)
	if err == sql.ErrNoRows {
		return nil, ErrPeerNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetAllPeers returns every known peer, most recently seen first.
func (s *Store) GetAllPeers() ([]Peer, error) {
	rows, err := s.db.Query(
		`SELECT peer_id, display_name, public_key, first_seen, last_seen, trust_level
		 FROM peers ORDER BY last_seen DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query peers: %w", err)
	}
	defer rows.Close()
	return scanPeerRows(rows)
}

// ListPeers paginates known peers, most recently seen first. Supplemental
// operation (from the original archive interface) so the external archive
// collaborator can page through contacts without re-deriving SQL.
func (s *Store) ListPeers(limit, offset int) ([]Peer, error) {
	rows, err := s.db.Query(
		`SELECT peer_id, display_name, public_key, first_seen, last_seen, trust_level
		 FROM peers ORDER BY last_seen DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list peers: %w", err)
	}
	defer rows.Close()
	return scanPeerRows(rows)
}

// UpdatePeerLastSeen bumps last_seen to now for an existing peer.
func (s *Store) UpdatePeerLastSeen(peerID string) error {
	_, err := s.db.Exec(`UPDATE peers SET last_seen = ? WHERE peer_id = ?`, unixTimestamp(time.Now()), peerID)
	if err != nil {
		return fmt.Errorf("store: update peer last_seen: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPeer(row rowScanner) (*Peer, error) {
	var (
		p           Peer
		displayName sql.NullString
		firstSeen   float64
		lastSeen    sql.NullFloat64
	)
	if err := row.Scan(&p.PeerID, &displayName, &p.PublicKey, &firstSeen, &lastSeen, &p.TrustLevel); err != nil {
		return nil, err
	}
	p.DisplayName = displayName.String
	p.FirstSeen = fromUnixTimestamp(firstSeen)
	if lastSeen.Valid {
		p.LastSeen = fromUnixTimestamp(lastSeen.Float64)
	}
	return &p, nil
}

func scanPeerRows(rows *sql.Rows) ([]Peer, error) {
	var out []Peer
	for rows.Next() {
		p, err := scanPeer(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan peer: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
