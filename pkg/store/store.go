package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store owns the sqlite database holding all durable assistant state:
// remembered facts, conversation history, and scheduled jobs.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	key        TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	tags       TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_channel ON history(channel, id);

CREATE TABLE IF NOT EXISTS schedules (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	trigger    TEXT NOT NULL,
	expr       TEXT NOT NULL,
	prompt     TEXT NOT NULL,
	channel    TEXT NOT NULL DEFAULT '',
	chat_id    TEXT NOT NULL DEFAULT '',
	enabled    INTEGER NOT NULL DEFAULT 1,
	last_run   TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
`

// Open opens (creating if needed) the database at path and applies the
// schema. WAL keeps the webhook handler and the heartbeat from blocking
// each other on writes.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc's driver serializes within a connection but not across
	// them; a single connection avoids SQLITE_BUSY under concurrency.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for the fact, history, and schedule
// stores built on top.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
