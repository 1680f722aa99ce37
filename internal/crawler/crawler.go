package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/showtimes/internal/clock/system"
	"github.com/JakeFAU/showtimes/internal/extract"
	"github.com/JakeFAU/showtimes/internal/metrics"
)

// DefaultMaxPages bounds a crawl when Config.MaxPages is unset.
const DefaultMaxPages = 20

// Config holds the settings for a crawl session.
type Config struct {
	MaxPages      int
	ArchivePrefix string
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithLimiter paces page fetches.
func WithLimiter(l Limiter) Option {
	return func(c *Crawler) { c.limiter = l }
}

// WithArchive stores every fetched page body in the blob store.
func WithArchive(store BlobStore, hasher Hasher) Option {
	return func(c *Crawler) {
		c.archive = store
		c.hasher = hasher
	}
}

// WithClock overrides the clock used for archive paths and timings.
func WithClock(clock Clock) Option {
	return func(c *Crawler) { c.clock = clock }
}

// Crawler drives the extractor across every page of a listing.
type Crawler struct {
	cfg     Config
	fetcher Fetcher
	limiter Limiter
	archive BlobStore
	hasher  Hasher
	clock   Clock
	logger  *zap.Logger
}

// New builds a Crawler.
func New(cfg Config, fetcher Fetcher, logger *zap.Logger, opts ...Option) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "pages"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Crawler{
		cfg:     cfg,
		fetcher: fetcher,
		clock:   system.New(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl fetches startURL with params and follows "Next" links until the
// listing is exhausted. Any fetch failure aborts the crawl.
func (c *Crawler) Crawl(ctx context.Context, startURL string, params url.Values) (Result, error) {
	target, err := withParams(startURL, params)
	if err != nil {
		return Result{}, err
	}

	start := c.clock.Now()
	seen := make(map[string]struct{})
	var result Result
	for target != "" {
		if len(result.URLs) >= c.cfg.MaxPages {
			result.Truncated = true
			result.Warnings = append(result.Warnings, fmt.Sprintf("stopped after %d pages", c.cfg.MaxPages))
			c.logger.Warn("page limit reached", zap.Int("max_pages", c.cfg.MaxPages), zap.String("next", target))
			break
		}
		key, err := NormalizeURL(target)
		if err != nil {
			return Result{}, err
		}
		if _, visited := seen[key]; visited {
			result.Warnings = append(result.Warnings, "next link revisits "+target)
			c.logger.Warn("next link loops back", zap.String("url", target))
			break
		}
		seen[key] = struct{}{}

		next, err := c.crawlPage(ctx, target, &result)
		if err != nil {
			metrics.ObserveCrawl("error", c.clock.Now().Sub(start))
			return Result{}, err
		}
		target = next
	}

	metrics.ObserveCrawl("ok", c.clock.Now().Sub(start))
	c.logger.Info("crawl finished",
		zap.Int("pages", len(result.URLs)),
		zap.Int("theatres", len(result.Theatres)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (c *Crawler) crawlPage(ctx context.Context, target string, result *Result) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, target); err != nil {
			return "", fmt.Errorf("wait for %s: %w", target, err)
		}
	}
	resp, err := c.fetcher.Fetch(ctx, FetchRequest{URL: target})
	if err != nil {
		metrics.ObservePage(target, "error", 0)
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	if resp.URL == "" {
		resp.URL = target
	}
	if resp.StatusCode >= 400 {
		metrics.ObservePage(resp.URL, "error", len(resp.Body))
		return "", &StatusError{URL: resp.URL, StatusCode: resp.StatusCode}
	}
	metrics.ObservePage(resp.URL, "ok", len(resp.Body))
	c.archivePage(ctx, resp)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", resp.URL, err)
	}

	page := extract.Theatres(doc)
	if len(result.URLs) == 0 {
		result.Title = extract.TitleBar(doc)
	}
	result.URLs = append(result.URLs, resp.URL)
	result.Theatres = append(result.Theatres, page.Theatres...)
	result.Warnings = append(result.Warnings, page.Warnings...)
	metrics.ObserveExtractionWarnings(countWarnings(page))

	c.logger.Debug("page extracted",
		zap.String("url", resp.URL),
		zap.Int("theatres", len(page.Theatres)),
		zap.Duration("fetch_duration", resp.Duration),
		zap.Bool("headless", resp.UsedHeadless),
	)

	next, err := extract.NextPageURL(doc, resp.URL)
	if err != nil {
		return "", fmt.Errorf("next page link on %s: %w", resp.URL, err)
	}
	return next, nil
}

func (c *Crawler) archivePage(ctx context.Context, resp FetchResponse) {
	if c.archive == nil || c.hasher == nil {
		return
	}
	digest, err := c.hasher.Hash(resp.Body)
	if err != nil {
		c.logger.Warn("hash page failed", zap.String("url", resp.URL), zap.Error(err))
		return
	}
	objectPath := path.Join(c.cfg.ArchivePrefix, c.clock.Now().UTC().Format("2006-01-02"), digest+".html")
	uri, err := c.archive.PutObject(ctx, objectPath, "text/html; charset=utf-8", bytes.NewReader(resp.Body))
	if err != nil {
		c.logger.Warn("archive page failed", zap.String("url", resp.URL), zap.Error(err))
		return
	}
	c.logger.Debug("page archived", zap.String("url", resp.URL), zap.String("uri", uri))
}

func countWarnings(page extract.Page) int {
	n := len(page.Warnings)
	for _, t := range page.Theatres {
		n += len(t.Warnings)
		for _, m := range t.Movies {
			n += len(m.Warnings)
		}
	}
	return n
}
