package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/showtimes/internal/cache"
	"github.com/JakeFAU/showtimes/internal/clock/system"
	"github.com/JakeFAU/showtimes/internal/crawler"
)

// CacheStore implements cache.Store on the showtime_cache tables.
type CacheStore struct {
	pool  pool
	clock crawler.Clock
}

// NewCacheStore wraps an existing pool. A nil clock falls back to the system clock.
func NewCacheStore(p pool, clock crawler.Clock) (*CacheStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		clock = system.New()
	}
	return &CacheStore{pool: p, clock: clock}, nil
}

// Get returns the unexpired value stored under key.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM showtime_cache WHERE key = $1 AND expires_at > $2`,
		key, s.clock.Now(),
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
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
	_, err := s.pool.Exec(ctx, `
INSERT INTO showtime_cache (key, value, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, s.clock.Now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Increment bumps the hit counter for key.
func (s *CacheStore) Increment(ctx context.Context, key string) (int64, error) {
	var hits int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO showtime_cache_hits (key, hits)
VALUES ($1, 1)
ON CONFLICT (key) DO UPDATE SET hits = showtime_cache_hits.hits + 1
RETURNING hits`,
		key,
	).Scan(&hits)
	if err != nil {
		return 0, fmt.Errorf("cache increment: %w", err)
	}
	return hits, nil
}

// Prune deletes expired entries and their hit counters in one statement and
// returns how many entries were removed.
func (s *CacheStore) Prune(ctx context.Context) (int64, error) {
	var removed int64
	err := s.pool.QueryRow(ctx, `
WITH expired AS (
	DELETE FROM showtime_cache WHERE expires_at <= $1 RETURNING key
), dropped AS (
	DELETE FROM showtime_cache_hits h
	WHERE h.key IN (SELECT key FROM expired)
	   OR NOT EXISTS (SELECT 1 FROM showtime_cache c WHERE c.key = h.key)
)
SELECT count(*) FROM expired`,
		s.clock.Now(),
	).Scan(&removed)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	return removed, nil
}
