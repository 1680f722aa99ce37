package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/showtimes/internal/config"
	"github.com/JakeFAU/showtimes/internal/showtime"
)

func baseConfig(t *testing.T, upstream string) config.Config {
	t.Helper()
	return config.Config{
		Server:   config.ServerConfig{Addr: "127.0.0.1:0", RequestTimeout: 5 * time.Second},
		Crawler:  config.CrawlerConfig{BaseURL: upstream + "/movies", MaxPages: 5, Timeout: 5 * time.Second, CrawlTimeout: 10 * time.Second},
		Cache:    config.CacheConfig{Backend: "memory"},
		Geocoder: config.GeocoderConfig{Provider: "zone", Zone: "UTC"},
		Archive:  config.ArchiveConfig{Backend: "none", Prefix: "pages"},
	}
}

func listingServer(t *testing.T) *httptest.Server {
	t.Helper()
	page, err := os.ReadFile("../extract/testdata/single_theatre.html")
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func query(t *testing.T, near string) showtime.Query {
	t.Helper()
	q, err := showtime.ParseQuery(&near, nil, nil)
	require.NoError(t, err)
	return q
}

func TestBuildServesQueriesPerCacheBackend(t *testing.T) {
	t.Parallel()

	upstream := listingServer(t)
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"memory", func(*config.Config) {}},
		{"redis", func(c *config.Config) {
			c.Cache.Backend = "redis"
			c.Redis = config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"}
		}},
		{"sqlite", func(c *config.Config) {
			c.Cache.Backend = "sqlite"
			c.SQLite.Path = filepath.Join(t.TempDir(), "cache.db")
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig(t, upstream.URL)
			tc.mutate(&cfg)
			require.NoError(t, cfg.Validate())

			a, err := build(context.Background(), cfg, zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(a.Close)

			theatres, err := a.Service().Theatres(context.Background(), query(t, "Chicago"))
			require.NoError(t, err)
			require.NotEmpty(t, theatres)

			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestBuildArchivesPagesLocally(t *testing.T) {
	t.Parallel()

	upstream := listingServer(t)
	dir := t.TempDir()
	cfg := baseConfig(t, upstream.URL)
	cfg.Archive = config.ArchiveConfig{Backend: "local", BaseDir: dir, Prefix: "pages"}

	a, err := build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Service().Showtimes(context.Background(), query(t, "Chicago"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "pages"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestBuildFailsOnBadZone(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t, "http://127.0.0.1:1")
	cfg.Geocoder.Zone = "Not/AZone"
	_, err := build(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "geocoder init failed")
}

func TestReadinessReportsRedisOutage(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := baseConfig(t, "http://127.0.0.1:1")
	cfg.Cache.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()

	a, err := build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	mr.Close()
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJanitorPrunesUntilClose(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	mr.HSet("test:hits", "gone:0", "5")
	cfg := baseConfig(t, "http://127.0.0.1:1")
	cfg.Cache = config.CacheConfig{Backend: "redis", PruneInterval: 10 * time.Millisecond}
	cfg.Redis = config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"}

	a, err := build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.janitorDone)

	require.Eventually(t, func() bool { return !mr.Exists("test:hits") }, 2*time.Second, 10*time.Millisecond)

	a.Close()
	select {
	case <-a.janitorDone:
	default:
		t.Fatal("janitor still running after Close")
	}
}

func TestJanitorDisabledWithZeroInterval(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t, "http://127.0.0.1:1")
	a, err := build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.janitorDone)
}

func TestRunStopsWhenContextCanceled(t *testing.T) {
	t.Parallel()

	a, err := build(context.Background(), baseConfig(t, "http://127.0.0.1:1"), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
