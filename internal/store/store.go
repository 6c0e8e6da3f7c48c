// Package store is the durable on-device cache: challenges, entries,
// and the pending write queue, each persisted as one JSON-encoded
// snapshot row in an embedded sqlite database. Every save replaces the
// prior snapshot in a single statement, so a crash can never leave a
// partially written collection behind.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"tallysync/internal/queue"
	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
)

const (
	keyChallenges = "challenges"
	keyEntries    = "entries"
	keyQueue      = "queue"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the snapshot database at path.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	// A single writer keeps snapshot replacement strictly ordered.
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize local store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadChallenges(ctx context.Context) ([]challenge.Challenge, error) {
	out := []challenge.Challenge{}
	if err := s.load(ctx, keyChallenges, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []challenge.Challenge{}
	}
	return out, nil
}

func (s *Store) SaveChallenges(ctx context.Context, challenges []challenge.Challenge) error {
	return s.save(ctx, keyChallenges, challenges)
}

func (s *Store) LoadEntries(ctx context.Context) ([]entry.Entry, error) {
	out := []entry.Entry{}
	if err := s.load(ctx, keyEntries, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []entry.Entry{}
	}
	return out, nil
}

func (s *Store) SaveEntries(ctx context.Context, entries []entry.Entry) error {
	return s.save(ctx, keyEntries, entries)
}

func (s *Store) LoadQueue(ctx context.Context) (queue.Queue, error) {
	out := queue.Queue{}
	if err := s.load(ctx, keyQueue, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = queue.Queue{}
	}
	return out, nil
}

func (s *Store) SaveQueue(ctx context.Context, q queue.Queue) error {
	return s.save(ctx, keyQueue, q)
}

// Clear drops every snapshot (logout / post-migration reset).
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("failed to clear local store: %w", err)
	}
	return nil
}

// load decodes the snapshot under key into dest. A missing row leaves
// dest untouched (empty collection), and so does an undecodable blob:
// first launch and a corrupt snapshot both behave like an empty server.
func (s *Store) load(ctx context.Context, key string, dest interface{}) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM snapshots WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s snapshot: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		log.Printf("Discarding undecodable %s snapshot: %v", key, err)
		return nil
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(raw))
	if err != nil {
		return fmt.Errorf("failed to write %s snapshot: %w", key, err)
	}
	return nil
}
