// Package store persists taste vectors in SQLite, keyed by entity kind and
// id. It also provides the per-entity write serialization the preference
// updater's read-modify-write cycle requires.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"cinetaste/internal/engine"
	"cinetaste/internal/vector"
)

// Kind distinguishes user profiles from movie profiles.
type Kind string

const (
	KindUser  Kind = "user"
	KindMovie Kind = "movie"
)

// Store wraps a SQLite connection holding one row per taste vector.
type Store struct {
	db *sql.DB

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open opens (or creates) the database and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	// Single connection avoids write contention for our scale.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, locks: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS taste_vectors (
			kind       TEXT NOT NULL,
			id         TEXT NOT NULL,
			vector     TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (kind, id)
		);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get loads the vector for (kind, id). Returns engine.ErrNotFound when the
// profile has not been stored.
func (s *Store) Get(ctx context.Context, kind Kind, id string) (*vector.TasteVector, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT vector FROM taste_vectors WHERE kind = ? AND id = ?`, string(kind), id,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s %q", engine.ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s %q: %w", kind, id, err)
	}

	var tv vector.TasteVector
	if err := json.Unmarshal([]byte(payload), &tv); err != nil {
		return nil, fmt.Errorf("store: decode %s %q: %w", kind, id, err)
	}
	return &tv, nil
}

// Put upserts the vector for (kind, id).
func (s *Store) Put(ctx context.Context, kind Kind, id string, tv *vector.TasteVector) error {
	payload, err := json.Marshal(tv)
	if err != nil {
		return fmt.Errorf("store: encode %s %q: %w", kind, id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO taste_vectors (kind, id, vector, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET vector = excluded.vector, updated_at = excluded.updated_at
	`, string(kind), id, string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: put %s %q: %w", kind, id, err)
	}
	return nil
}


// Count returns the number of stored vectors of the given kind.
func (s *Store) Count(ctx context.Context, kind Kind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM taste_vectors WHERE kind = ?`, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count %s: %w", kind, err)
	}
	return n, nil
}

// ItemTags resolves a movie id to its per-category tag scores, serving the
// vector builder's hint extraction.
func (s *Store) ItemTags(ctx context.Context, itemID string) (map[string]vector.Scores, error) {
	tv, err := s.Get(ctx, KindMovie, itemID)
	if err != nil {
		return nil, err
	}
	return tv.CategoryScores, nil
}

// LockEntities serializes read-modify-write cycles over the given entities.
// Keys are locked in sorted order so two feedback calls touching the same
// user and movie cannot deadlock. The returned function releases the locks.
func (s *Store) LockEntities(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, key := range sorted {
		s.locksMu.Lock()
		mu, ok := s.locks[key]
		if !ok {
			mu = &sync.Mutex{}
			s.locks[key] = mu
		}
		s.locksMu.Unlock()
		mu.Lock()
		held = append(held, mu)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// EntityKey builds the lock key for (kind, id).
func EntityKey(kind Kind, id string) string {
	return string(kind) + "/" + id
}
