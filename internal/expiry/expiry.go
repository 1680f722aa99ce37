// Package expiry computes cache lifetimes that end at the location's local midnight.
package expiry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/showtimes/internal/clock/system"
	"github.com/JakeFAU/showtimes/internal/crawler"
	"github.com/JakeFAU/showtimes/internal/geo"
	"github.com/JakeFAU/showtimes/internal/metrics"
)

const secondsPerDay = 24 * 60 * 60

// DefaultFallback is used when the location's offset cannot be resolved.
const DefaultFallback = time.Hour

// SecondsUntilMidnight returns the whole seconds from now until the next
// midnight in a zone offsetSeconds east of UTC. The result is in [1, 86400].
func SecondsUntilMidnight(now time.Time, offsetSeconds int) int {
	local := now.UTC().Add(time.Duration(offsetSeconds) * time.Second)
	elapsed := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return secondsPerDay - elapsed
}

// Calculator turns a location into a cache TTL.
type Calculator struct {
	resolver geo.Resolver
	clock    crawler.Clock
	fallback time.Duration
	logger   *zap.Logger
}

// Option customizes a Calculator.
type Option func(*Calculator)

// WithClock overrides the time source.
func WithClock(clock crawler.Clock) Option {
	return func(c *Calculator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithFallback sets the TTL used when resolution fails.
func WithFallback(ttl time.Duration) Option {
	return func(c *Calculator) {
		if ttl > 0 {
			c.fallback = ttl
		}
	}
}

// New creates a Calculator backed by resolver.
func New(resolver geo.Resolver, logger *zap.Logger, opts ...Option) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Calculator{
		resolver: resolver,
		clock:    system.New(),
		fallback: DefaultFallback,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the time left until midnight at location. It never fails: an
// unresolvable offset yields the fallback TTL.
func (c *Calculator) TTL(ctx context.Context, location string) time.Duration {
	now := c.clock.Now()
	if c.resolver == nil {
		return c.fallback
	}
	offset, err := c.resolver.UTCOffset(ctx, location, now)
	if err != nil {
		metrics.ObserveGeocodeFailure()
		c.logger.Warn("could not resolve utc offset, using fallback ttl",
			zap.String("location", location),
			zap.Duration("fallback", c.fallback),
			zap.Error(err),
		)
		return c.fallback
	}
	return time.Duration(SecondsUntilMidnight(now, offset)) * time.Second
}
