// Package redis provides a Redis-backed cache.Store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/showtimes/internal/cache"
)

// Config captures the Redis connection parameters.
type Config struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Prefix namespaces every key written by the store.
	Prefix string `mapstructure:"prefix"`
}

// CacheStore stores entries as plain string keys and hit counts in one hash.
type CacheStore struct {
	client  goredis.Cmdable
	prefix  string
	hitsKey string
}

// NewClient opens a go-redis client for cfg.
func NewClient(cfg Config) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}

// NewCacheStore wraps a connected client.
func NewCacheStore(client goredis.Cmdable, prefix string) (*CacheStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &CacheStore{
		client:  client,
		prefix:  prefix,
		hitsKey: prefix + "hits",
	}, nil
}

// Get returns the value for key or cache.ErrMiss. Redis evicts expired keys itself.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set writes value with ttl.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return cache.ErrInvalidTTL
	}
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Increment bumps the hit counter for key in the hits hash.
func (s *CacheStore) Increment(ctx context.Context, key string) (int64, error) {
	hits, err := s.client.HIncrBy(ctx, s.hitsKey, key, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby: %w", err)
	}
	return hits, nil
}

// pruneBatch is the HSCAN page size used by Prune.
const pruneBatch = 256

// Prune removes hit counters whose entry Redis has already expired and returns
// how many were removed.
func (s *CacheStore) Prune(ctx context.Context) (int64, error) {
	var (
		stale  []string
		cursor uint64
	)
	for {
		fields, next, err := s.client.HScan(ctx, s.hitsKey, cursor, "", pruneBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("redis hscan: %w", err)
		}
		// HSCAN returns field/value pairs.
		for i := 0; i < len(fields); i += 2 {
			n, err := s.client.Exists(ctx, s.prefix+fields[i]).Result()
			if err != nil {
				return 0, fmt.Errorf("redis exists: %w", err)
			}
			if n == 0 {
				stale = append(stale, fields[i])
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	removed, err := s.client.HDel(ctx, s.hitsKey, stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hdel: %w", err)
	}
	return removed, nil
}

// Ping reports whether the server is reachable.
func (s *CacheStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
