package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/showtimes/internal/cache"
	"github.com/JakeFAU/showtimes/internal/clock/system"
	"github.com/JakeFAU/showtimes/internal/crawler"
	"github.com/JakeFAU/showtimes/internal/metrics"
	"github.com/JakeFAU/showtimes/internal/showtime"
)

const (
	// DefaultBaseURL is the listing source queried with near and date.
	DefaultBaseURL = "http://google.com/movies"
	// DefaultCrawlTimeout bounds one shared crawl.
	DefaultCrawlTimeout = 2 * time.Minute
	// DefaultTTL is used when no TTLCalculator is configured.
	DefaultTTL = time.Hour
	// EventCrawlCompleted is published after every successful crawl.
	EventCrawlCompleted = "crawl.completed"
)

// Crawler walks every page of a listing.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, params url.Values) (crawler.Result, error)
}

// TTLCalculator decides how long a fresh entry for location stays cached.
type TTLCalculator interface {
	TTL(ctx context.Context, location string) time.Duration
}

// Publisher delivers crawl notifications.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// Mirror persists crawl results outside the cache.
type Mirror interface {
	SaveShowtimes(ctx context.Context, snap showtime.Snapshot) error
}

// IDGenerator creates crawl identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Config holds orchestrator settings.
type Config struct {
	BaseURL      string
	CrawlTimeout time.Duration
}

// CrawlCompleted is the payload published after a crawl populates the cache.
type CrawlCompleted struct {
	ID        string        `json:"id"`
	Key       string        `json:"key"`
	Location  string        `json:"location"`
	DayOffset int           `json:"day_offset"`
	Title     string        `json:"title,omitempty"`
	Theatres  int           `json:"theatres"`
	Pages     int           `json:"pages"`
	Warnings  int           `json:"warnings"`
	Truncated bool          `json:"truncated"`
	TTL       time.Duration `json:"ttl_ns"`
	CrawledAt time.Time     `json:"crawled_at"`
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher announces every completed crawl.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMirror copies every crawl result into a secondary store.
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithIDGenerator overrides crawl identifiers.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Service) { s.ids = ids }
}

// WithClock overrides the time source.
func WithClock(clock crawler.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// Service is the cache-aside coordinator for showtime queries.
type Service struct {
	cfg       Config
	store     cache.Store
	crawler   Crawler
	ttl       TTLCalculator
	publisher Publisher
	mirror    Mirror
	ids       IDGenerator
	clock     crawler.Clock
	logger    *zap.Logger
	group     singleflight.Group
}

// New builds a Service. A nil store disables caching.
func New(cfg Config, store cache.Store, c Crawler, ttl TTLCalculator, logger *zap.Logger, opts ...Option) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CrawlTimeout <= 0 {
		cfg.CrawlTimeout = DefaultCrawlTimeout
	}
	if store == nil {
		store = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cfg:     cfg,
		store:   store,
		crawler: c,
		ttl:     ttl,
		clock:   system.New(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Showtimes returns the JSON encoded theatres for q, rendered in the time
// representation q asks for.
func (s *Service) Showtimes(ctx context.Context, q showtime.Query) ([]byte, error) {
	theatres, err := s.Theatres(ctx, q)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(showtime.Render(theatres, q.UseMilitaryTime))
	if err != nil {
		return nil, fmt.Errorf("encode theatres: %w", err)
	}
	return body, nil
}

// Theatres returns the canonical theatre list for q from the cache, crawling
// on a miss. Concurrent misses for one key share a single crawl.
func (s *Service) Theatres(ctx context.Context, q showtime.Query) ([]showtime.Theatre, error) {
	key := q.Key()
	if theatres, ok := s.lookup(ctx, key, true); ok {
		return theatres, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// A crawl for key may have finished between the lookup above and this call.
		if theatres, ok := s.lookup(ctx, key, false); ok {
			return theatres, nil
		}
		return s.populate(ctx, q, key)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for crawl: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("joined in-flight crawl", zap.String("key", key))
		}
		theatres, _ := res.Val.([]showtime.Theatre)
		return theatres, nil
	}
}

// lookup reads key from the cache. Failed lookups are only recorded when
// observe is set so a re-check does not report the same miss twice.
func (s *Service) lookup(ctx context.Context, key string, observe bool) ([]showtime.Theatre, bool) {
	data, err := s.store.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		if observe {
			metrics.ObserveCacheLookup("miss")
		}
		return nil, false
	case err != nil:
		if observe {
			metrics.ObserveCacheLookup("error")
			s.logger.Warn("cache read failed, crawling", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	theatres, err := showtime.Decode(data)
	if err != nil {
		if observe {
			metrics.ObserveCacheLookup("error")
			s.logger.Warn("cached entry is unreadable, crawling", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	metrics.ObserveCacheLookup("hit")

	hits, err := s.store.Increment(ctx, key)
	if err != nil {
		s.logger.Warn("cache hit counter failed", zap.String("key", key), zap.Error(err))
	} else {
		s.logger.Debug("cache hit", zap.String("key", key), zap.Int64("hits", hits))
	}
	return theatres, true
}

func (s *Service) populate(ctx context.Context, q showtime.Query, key string) ([]showtime.Theatre, error) {
	// Callers that join this crawl must not be cut short by the first caller leaving.
	crawlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CrawlTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("near", q.Location)
	params.Set("date", strconv.Itoa(q.DayOffset))

	result, err := s.crawler.Crawl(crawlCtx, s.cfg.BaseURL, params)
	if err != nil {
		s.logger.Error("crawl failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	if len(result.Warnings) > 0 {
		s.logger.Debug("crawl warnings", zap.String("key", key), zap.Strings("warnings", result.Warnings))
	}

	theatres := showtime.Strip(result.Theatres)
	ttl := s.writeCache(crawlCtx, q, key, theatres)

	crawledAt := s.clock.Now()
	if s.mirror != nil {
		snap := showtime.Snapshot{Key: key, CrawledAt: crawledAt, Theatres: theatres}
		if err := s.mirror.SaveShowtimes(crawlCtx, snap); err != nil {
			s.logger.Warn("mirror write failed", zap.String("key", key), zap.Error(err))
		}
	}
	s.announce(crawlCtx, q, key, result, ttl, crawledAt)
	return theatres, nil
}

// writeCache stores the canonical entry and returns the TTL used.
func (s *Service) writeCache(ctx context.Context, q showtime.Query, key string, theatres []showtime.Theatre) time.Duration {
	data, err := showtime.Encode(theatres)
	if err != nil {
		metrics.ObserveCacheWrite("error")
		s.logger.Warn("encode cache entry failed", zap.String("key", key), zap.Error(err))
		return 0
	}
	ttl := DefaultTTL
	if s.ttl != nil {
		ttl = s.ttl.TTL(ctx, q.Location)
	}
	if err := s.store.Set(ctx, key, data, ttl); err != nil {
		metrics.ObserveCacheWrite("error")
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return ttl
	}
	metrics.ObserveCacheWrite("ok")
	s.logger.Debug("cache populated", zap.String("key", key), zap.Duration("ttl", ttl))
	return ttl
}

func (s *Service) announce(
	ctx context.Context,
	q showtime.Query,
	key string,
	result crawler.Result,
	ttl time.Duration,
	crawledAt time.Time,
) {
	if s.publisher == nil {
		return
	}
	event := CrawlCompleted{
		Key:       key,
		Location:  q.Location,
		DayOffset: q.DayOffset,
		Title:     result.Title,
		Theatres:  len(result.Theatres),
		Pages:     len(result.URLs),
		Warnings:  len(result.Warnings),
		Truncated: result.Truncated,
		TTL:       ttl,
		CrawledAt: crawledAt,
	}
	if s.ids != nil {
		id, err := s.ids.NewID()
		if err != nil {
			s.logger.Warn("crawl id generation failed", zap.Error(err))
		}
		event.ID = id
	}
	if _, err := s.publisher.Publish(ctx, EventCrawlCompleted, event); err != nil {
		s.logger.Warn("publish crawl event failed", zap.String("key", key), zap.Error(err))
	}
}
