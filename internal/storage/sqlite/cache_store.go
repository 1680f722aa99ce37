// Package sqlite provides a single-file SQLite cache.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/showtimes/internal/cache"
	"github.com/JakeFAU/showtimes/internal/clock/system"
	"github.com/JakeFAU/showtimes/internal/crawler"
)

const schema = `
CREATE TABLE IF NOT EXISTS showtime_cache (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_showtime_cache_expires_at ON showtime_cache(expires_at);
CREATE TABLE IF NOT EXISTS showtime_cache_hits (
	key TEXT PRIMARY KEY,
	hits INTEGER NOT NULL DEFAULT 0
);`

// CacheStore keeps entries in SQLite with expiry stored as unix milliseconds.
type CacheStore struct {
	db    *sql.DB
	clock crawler.Clock
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" is accepted for tests.
func Open(ctx context.Context, path string, clock crawler.Clock) (*CacheStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite.path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	store, err := New(ctx, db, clock)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing handle and applies the schema.
func New(ctx context.Context, db *sql.DB, clock crawler.Clock) (*CacheStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if clock == nil {
		clock = system.New()
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &CacheStore{db: db, clock: clock}, nil
}

// Close closes the database handle.
func (s *CacheStore) Close() error {
	return s.db.Close()
}

// Get returns the unexpired value stored under key.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM showtime_cache WHERE key = ? AND expires_at > ?",
		key, s.clock.Now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return value, nil
}

// Set upserts value with an absolute expiry of now+ttl.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return cache.ErrInvalidTTL
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO showtime_cache (key, value, expires_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.clock.Now().Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Increment bumps the hit counter for key.
func (s *CacheStore) Increment(ctx context.Context, key string) (int64, error) {
	var hits int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO showtime_cache_hits (key, hits) VALUES (?, 1)
		 ON CONFLICT(key) DO UPDATE SET hits = hits + 1
		 RETURNING hits`,
		key,
	).Scan(&hits)
	if err != nil {
		return 0, fmt.Errorf("cache increment: %w", err)
	}
	return hits, nil
}

// Prune removes expired entries together with their hit counters and returns
// how many entries were deleted.
func (s *CacheStore) Prune(ctx context.Context) (int64, error) {
	now := s.clock.Now().UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "DELETE FROM showtime_cache WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM showtime_cache_hits WHERE key NOT IN (SELECT key FROM showtime_cache)",
	); err != nil {
		return 0, fmt.Errorf("cache prune hits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cache prune commit: %w", err)
	}
	return removed, nil
}
