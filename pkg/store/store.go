// Package store implements the message store (spec C4): a persistent
// relational store of peers, messages, and session keys backed by SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Direction distinguishes a stored message's flow relative to this device.
type Direction string

const (
	// Sent marks a message this device transmitted.
	Sent Direction = "sent"
	// Received marks a message this device received.
	Received Direction = "received"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	peer_id TEXT NOT NULL,
	content BLOB NOT NULL,
	timestamp REAL NOT NULL,
	direction TEXT NOT NULL,
	session_id TEXT,
	delivered INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS peers (
	peer_id TEXT PRIMARY KEY,
	display_name TEXT,
	public_key BLOB NOT NULL,
	first_seen REAL NOT NULL,
	last_seen REAL,
	trust_level INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	peer_id TEXT NOT NULL,
	session_key BLOB NOT NULL,
	created_at REAL NOT NULL,
	expires_at REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_peer ON messages(peer_id);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
CREATE INDEX IF NOT EXISTS idx_sessions_peer ON sessions(peer_id);
`

// Config configures a Store.
type Config struct {
	// Path is the SQLite database file path. Required.
	Path string
}

func (c *Config) applyDefaults() {}

// Store is a SQLite-backed message store. All writes go through a
// single-connection pool (spec §5, "per-operation connection model
// suffices") so concurrent writers serialize through database/sql; reads
// use the same handle since SQLite itself serializes writers regardless.
type Store struct {
	db *sql.DB
}

// Open creates (if necessary) and opens the SQLite database at cfg.Path,
// creating the peers/messages/sessions schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	cfg.applyDefaults()

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("store: create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func unixTimestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixTimestamp(ts float64) time.Time {
	return time.Unix(0, int64(ts*1e9))
}
