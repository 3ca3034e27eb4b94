// Package sqlite provides a cache.Store backed by a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/docker/briefing/pkg/cache"
)

// Store implements cache.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ cache.Store = (*Store)(nil)

// Factory creates SQLite stores.
type Factory struct{}

var _ cache.Factory = (*Factory)(nil)

func (f *Factory) CreateStore(ctx context.Context, cfg cache.Config) (cache.Store, error) {
	return Open(ctx, cfg.Path)
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite cache requires a path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	// The driver applies each _pragma on every new connection.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS artifacts (
		cache_key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create artifacts table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM artifacts WHERE cache_key = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read artifact: %w", err)
	}
	return payload, true, nil
}

func (s *Store) Put(ctx context.Context, key, payload string) error {
	updatedAt := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO artifacts (cache_key, payload, updated_at) VALUES (?, ?, ?)",
		key, payload, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
