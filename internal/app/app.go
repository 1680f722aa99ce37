// Package app builds the long-lived services behind the server and CLI,
// acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/showtimes/internal/api"
	"github.com/JakeFAU/showtimes/internal/cache"
	"github.com/JakeFAU/showtimes/internal/clock/system"
	"github.com/JakeFAU/showtimes/internal/config"
	"github.com/JakeFAU/showtimes/internal/crawler"
	"github.com/JakeFAU/showtimes/internal/expiry"
	collyfetcher "github.com/JakeFAU/showtimes/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/showtimes/internal/fetcher/headless"
	"github.com/JakeFAU/showtimes/internal/geo"
	"github.com/JakeFAU/showtimes/internal/hash/sha256"
	"github.com/JakeFAU/showtimes/internal/id/uuid"
	"github.com/JakeFAU/showtimes/internal/logging"
	"github.com/JakeFAU/showtimes/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/showtimes/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/showtimes/internal/publisher/pubsub"
	"github.com/JakeFAU/showtimes/internal/service"
	gcsstorage "github.com/JakeFAU/showtimes/internal/storage/gcs"
	localstorage "github.com/JakeFAU/showtimes/internal/storage/local"
	memorystorage "github.com/JakeFAU/showtimes/internal/storage/memory"
	pgstore "github.com/JakeFAU/showtimes/internal/storage/postgres"
	redisstore "github.com/JakeFAU/showtimes/internal/storage/redis"
	sqlitestore "github.com/JakeFAU/showtimes/internal/storage/sqlite"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	service   *service.Service
	apiServer *api.Server

	checks      []api.ReadinessCheck
	closers     []closer
	janitorDone chan struct{}
}

type closer struct {
	name string
	fn   func() error
}

// Build creates the application's dependencies from cfg. On error every
// resource opened so far is released.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("geocoder", cfg.Geocoder.Provider),
		zap.String("archive_backend", cfg.Archive.Backend),
		zap.Bool("headless", cfg.Headless.Enabled),
	)

	ok := false
	defer func() {
		if !ok {
			a.closeInfrastructure()
		}
	}()

	clock := system.New()

	pool, err := a.setupPostgres(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.setupCache(ctx, pool, clock)
	if err != nil {
		return nil, err
	}
	a.startJanitor(store)
	ttl, err := a.setupExpiry(clock)
	if err != nil {
		return nil, err
	}
	c, err := a.setupCrawler(ctx, clock)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithIDGenerator(uuid.New()),
		service.WithClock(clock),
	}
	pub, err := a.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, service.WithPublisher(pub))
	if cfg.Mirror.Enabled && pool != nil {
		mirror, err := pgstore.NewShowtimeStore(pool)
		if err != nil {
			return nil, fmt.Errorf("showtime mirror init failed: %w", err)
		}
		opts = append(opts, service.WithMirror(mirror))
		logger.Info("postgres showtime mirror enabled")
	}

	a.service = service.New(service.Config{
		BaseURL:      cfg.Crawler.BaseURL,
		CrawlTimeout: cfg.Crawler.CrawlTimeout,
	}, store, c, ttl, logger.Named("service"), opts...)

	a.apiServer = api.NewServer(a.service, api.Config{
		RequestTimeout: cfg.Server.RequestTimeout,
		APIKey:         cfg.Server.APIKey,
	}, logger.Named("api"), a.checks...)

	ok = true
	return a, nil
}

// Service returns the query orchestrator.
func (a *App) Service() *service.Service {
	return a.service
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run serves HTTP on cfg.Server.Addr until ctx is canceled or a termination
// signal arrives, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", a.cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// Close releases every resource opened by Build and flushes the logger.
func (a *App) Close() {
	a.closeInfrastructure()
	if err := logging.Sync(a.logger); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
}

func (a *App) closeInfrastructure() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close failed", zap.String("resource", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) setupPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	if a.cfg.Cache.Backend != "postgres" && !a.cfg.Mirror.Enabled {
		return nil, nil
	}
	pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{
		DSN:             a.cfg.Postgres.DSN,
		MaxConns:        a.cfg.Postgres.MaxConns,
		MinConns:        a.cfg.Postgres.MinConns,
		MaxConnLifetime: a.cfg.Postgres.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres init failed: %w", err)
	}
	a.onClose("postgres", func() error {
		pool.Close()
		return nil
	})
	if err := pgstore.EnsureSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("postgres schema init failed: %w", err)
	}
	a.checks = append(a.checks, api.ReadinessCheck{Name: "postgres", Check: pool.Ping})
	a.logger.Info("postgres pool initialized", zap.Int32("max_conns", a.cfg.Postgres.MaxConns))
	return pool, nil
}

// startJanitor prunes store on cache.prune_interval until Close. Stores that
// expire state on their own are left alone.
func (a *App) startJanitor(store cache.Store) {
	p, ok := store.(cache.Pruner)
	if !ok || a.cfg.Cache.PruneInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cache.RunJanitor(ctx, p, a.cfg.Cache.PruneInterval, a.logger.Named("janitor"))
	}()
	a.janitorDone = done
	a.onClose("cache janitor", func() error {
		cancel()
		<-done
		return nil
	})
	a.logger.Info("cache janitor started", zap.Duration("interval", a.cfg.Cache.PruneInterval))
}

func (a *App) setupCache(ctx context.Context, pool *pgxpool.Pool, clock crawler.Clock) (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case "redis":
		client, err := redisstore.NewClient(redisstore.Config{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis client init failed: %w", err)
		}
		a.onClose("redis", client.Close)
		store, err := redisstore.NewCacheStore(client, a.cfg.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("redis cache init failed: %w", err)
		}
		a.checks = append(a.checks, api.ReadinessCheck{Name: "redis", Check: store.Ping})
		a.logger.Info("using redis cache", zap.String("addr", a.cfg.Redis.Addr))
		return store, nil
	case "postgres":
		store, err := pgstore.NewCacheStore(pool, clock)
		if err != nil {
			return nil, fmt.Errorf("postgres cache init failed: %w", err)
		}
		a.logger.Info("using postgres cache")
		return store, nil
	case "sqlite":
		store, err := sqlitestore.Open(ctx, a.cfg.SQLite.Path, clock)
		if err != nil {
			return nil, fmt.Errorf("sqlite cache init failed: %w", err)
		}
		a.onClose("sqlite", store.Close)
		a.logger.Info("using sqlite cache", zap.String("path", a.cfg.SQLite.Path))
		return store, nil
	default:
		a.logger.Info("using in-memory cache")
		return memorystorage.NewCacheStore(clock), nil
	}
}

func (a *App) setupExpiry(clock crawler.Clock) (*expiry.Calculator, error) {
	var resolver geo.Resolver
	switch a.cfg.Geocoder.Provider {
	case "google":
		r, err := geo.NewGoogleResolver(a.cfg.Geocoder.APIKey)
		if err != nil {
			return nil, fmt.Errorf("geocoder init failed: %w", err)
		}
		resolver = r
		a.logger.Info("using google geocoder")
	default:
		r, err := geo.NewZoneResolver(a.cfg.Geocoder.Zone)
		if err != nil {
			return nil, fmt.Errorf("geocoder init failed: %w", err)
		}
		resolver = r
		a.logger.Info("using fixed zone for expiry", zap.String("zone", a.cfg.Geocoder.Zone))
	}
	return expiry.New(resolver, a.logger.Named("expiry"), expiry.WithClock(clock)), nil
}

func (a *App) setupCrawler(ctx context.Context, clock crawler.Clock) (*crawler.Crawler, error) {
	var fetcher crawler.Fetcher
	if a.cfg.Headless.Enabled {
		f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			UserAgent:         a.cfg.Crawler.UserAgent,
			NavigationTimeout: a.cfg.Headless.NavigationTimeout,
			WaitSelector:      a.cfg.Headless.WaitSelector,
		})
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.onClose("headless", func() error {
			f.Close()
			return nil
		})
		fetcher = f
		a.logger.Info("using headless fetcher", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
	} else {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:  a.cfg.Crawler.UserAgent,
			Timeout:    a.cfg.Crawler.Timeout,
			AllowFiles: a.cfg.Crawler.AllowFiles,
		})
		a.logger.Info("using colly fetcher", zap.String("user_agent", a.cfg.Crawler.UserAgent))
	}

	opts := []crawler.Option{crawler.WithClock(clock)}
	if a.cfg.Crawler.RequestsPerSecond > 0 {
		opts = append(opts, crawler.WithLimiter(ratelimit.New(ratelimit.Config{
			RequestsPerSecond: a.cfg.Crawler.RequestsPerSecond,
			Burst:             a.cfg.Crawler.Burst,
		})))
		a.logger.Info("rate limiter enabled",
			zap.Float64("requests_per_second", a.cfg.Crawler.RequestsPerSecond),
			zap.Int("burst", a.cfg.Crawler.Burst),
		)
	}

	archive, err := a.setupArchive(ctx)
	if err != nil {
		return nil, err
	}
	if archive != nil {
		opts = append(opts, crawler.WithArchive(archive, sha256.New()))
	}

	return crawler.New(crawler.Config{
		MaxPages:      a.cfg.Crawler.MaxPages,
		ArchivePrefix: a.cfg.Archive.Prefix,
	}, fetcher, a.logger.Named("crawler"), opts...), nil
}

func (a *App) setupArchive(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Archive.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.onClose("gcs", client.Close)
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Archive.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("archiving pages to gcs", zap.String("bucket", a.cfg.Archive.Bucket))
		return store, nil
	case "local":
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("archiving pages locally", zap.String("path", a.cfg.Archive.BaseDir))
		return store, nil
	case "memory":
		a.logger.Info("archiving pages in memory")
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (service.Publisher, error) {
	if !a.cfg.Notify.Enabled {
		a.logger.Debug("notifications disabled, using in-memory publisher")
		return memorypublisher.New(0), nil
	}
	pub, client, err := gcppublisher.Dial(ctx, gcppublisher.Config{
		ProjectID: a.cfg.Notify.ProjectID,
		TopicID:   a.cfg.Notify.TopicID,
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub init failed: %w", err)
	}
	a.onClose("pubsub", func() error {
		pub.Stop()
		return client.Close()
	})
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.Notify.ProjectID),
		zap.String("topic", a.cfg.Notify.TopicID),
	)
	return pub, nil
}
