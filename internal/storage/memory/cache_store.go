package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/showtimes/internal/cache"
	"github.com/JakeFAU/showtimes/internal/clock/system"
	"github.com/JakeFAU/showtimes/internal/crawler"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// sweepInterval bounds how often Set scans for expired entries.
const sweepInterval = time.Minute

// CacheStore provides an in-memory cache.Store for development/testing.
// A key's hit counter is dropped together with its entry.
type CacheStore struct {
	mu        sync.Mutex
	clock     crawler.Clock
	entries   map[string]cacheEntry
	hits      map[string]int64
	nextSweep time.Time
}

// NewCacheStore constructs a CacheStore. A nil clock falls back to the system clock.
func NewCacheStore(clock crawler.Clock) *CacheStore {
	if clock == nil {
		clock = system.New()
	}
	return &CacheStore{
		clock:   clock,
		entries: make(map[string]cacheEntry),
		hits:    make(map[string]int64),
	}
}

// Get returns a copy of the stored value, or cache.ErrMiss when absent or expired.
func (s *CacheStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	if !s.clock.Now().Before(entry.expiresAt) {
		s.evict(key)
		return nil, cache.ErrMiss
	}
	return append([]byte(nil), entry.value...), nil
}

// Set stores value until ttl elapses.
func (s *CacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return cache.ErrInvalidTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if !now.Before(s.nextSweep) {
		s.sweep(now)
		s.nextSweep = now.Add(sweepInterval)
	}
	s.entries[key] = cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Prune removes every expired entry with its hit counter and reports how many
// entries were removed.
func (s *CacheStore) Prune(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweep(s.clock.Now()), nil
}

func (s *CacheStore) sweep(now time.Time) int64 {
	var removed int64
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			s.evict(key)
			removed++
		}
	}
	for key := range s.hits {
		if _, ok := s.entries[key]; !ok {
			delete(s.hits, key)
		}
	}
	return removed
}

func (s *CacheStore) evict(key string) {
	delete(s.entries, key)
	delete(s.hits, key)
}

// Increment bumps the hit counter for key.
func (s *CacheStore) Increment(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[key]++
	return s.hits[key], nil
}

// Len reports the number of entries held, including expired ones not yet swept.
func (s *CacheStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Counters reports the number of hit counters held.
func (s *CacheStore) Counters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits)
}
