// Package cache defines the key/value contract used to memoize crawl results.
//
// Entries are opaque byte slices with a time to live. Each key also owns a
// hit counter that lives beside the entry and is never overwritten by Set.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is implemented by every cache backend.
type Store interface {
	// Get returns the stored value or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key for ttl. A non-positive ttl is rejected.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Increment bumps the hit counter for key and returns the new count.
	Increment(ctx context.Context, key string) (int64, error)
}

// ErrInvalidTTL is returned when Set receives a non-positive ttl.
var ErrInvalidTTL = errors.New("cache: ttl must be positive")

// Noop never stores anything. Every Get is a miss.
type Noop struct{}

// Get always reports a miss.
func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

// Set discards the value.
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Increment always reports zero hits.
func (Noop) Increment(context.Context, string) (int64, error) { return 0, nil }
