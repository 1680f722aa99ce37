// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	APIKey         string        `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlerConfig governs how listing pages are fetched and paged through.
type CrawlerConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	MaxPages          int           `mapstructure:"max_pages"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CrawlTimeout      time.Duration `mapstructure:"crawl_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	AllowFiles        bool          `mapstructure:"allow_files"`
}

// HeadlessConfig configures the chromedp fetcher used instead of plain HTTP.
type HeadlessConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxParallel       int           `mapstructure:"max_parallel"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	WaitSelector      string        `mapstructure:"wait_selector"`
}

// CacheConfig picks the result cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	// PruneInterval is how often expired entries and hit counters are removed.
	// Zero disables the janitor.
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// RedisConfig addresses the redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// SQLiteConfig locates the embedded cache database.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// GeocoderConfig selects how a location's UTC offset is resolved.
type GeocoderConfig struct {
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	Zone     string `mapstructure:"zone"`
}

// ArchiveConfig sets where raw listing pages are kept.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// NotifyConfig holds metadata for crawl-completed notifications.
type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// MirrorConfig toggles copying crawl results into postgres tables.
type MirrorConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load builds a Config from a .env file, the config file at path, and the
// environment. Environment variables use the SHOWTIMES_ prefix, so
// SHOWTIMES_CACHE_BACKEND overrides cache.backend.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("SHOWTIMES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.api_key", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("crawler.base_url", "http://google.com/movies")
	v.SetDefault("crawler.max_pages", 20)
	v.SetDefault("crawler.user_agent", "showtimes-bot/0.1")
	v.SetDefault("crawler.timeout", "15s")
	v.SetDefault("crawler.crawl_timeout", "2m")
	v.SetDefault("crawler.requests_per_second", 2.0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("crawler.allow_files", false)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.navigation_timeout", "25s")
	v.SetDefault("headless.wait_selector", "body")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.prune_interval", 10*time.Minute)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "showtimes:")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("postgres.min_conns", 0)
	v.SetDefault("postgres.max_conn_lifetime", "30m")
	v.SetDefault("sqlite.path", "showtimes.db")
	v.SetDefault("geocoder.provider", "zone")
	v.SetDefault("geocoder.api_key", "")
	v.SetDefault("geocoder.zone", "UTC")
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.base_dir", "data/pages")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic_id", "")
	v.SetDefault("mirror.enabled", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url must be set")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.Timeout <= 0 {
		return fmt.Errorf("crawler.timeout must be > 0")
	}
	if c.Crawler.CrawlTimeout <= 0 {
		return fmt.Errorf("crawler.crawl_timeout must be > 0")
	}
	if c.Crawler.RequestsPerSecond < 0 {
		return fmt.Errorf("crawler.requests_per_second must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}

	if c.Cache.PruneInterval < 0 {
		return fmt.Errorf("cache.prune_interval must be >= 0")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr must be set when cache.backend is redis")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn must be set when cache.backend is postgres")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path must be set when cache.backend is sqlite")
		}
	default:
		return fmt.Errorf("cache.backend %q is not one of memory, redis, postgres, sqlite", c.Cache.Backend)
	}

	switch c.Geocoder.Provider {
	case "zone":
	case "google":
		if c.Geocoder.APIKey == "" {
			return fmt.Errorf("geocoder.api_key must be set when geocoder.provider is google")
		}
	default:
		return fmt.Errorf("geocoder.provider %q is not one of google, zone", c.Geocoder.Provider)
	}

	switch c.Archive.Backend {
	case "none", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when archive.backend is local")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when archive.backend is gcs")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of none, memory, local, gcs", c.Archive.Backend)
	}

	if c.Notify.Enabled && (c.Notify.ProjectID == "" || c.Notify.TopicID == "") {
		return fmt.Errorf("notify.project_id and notify.topic_id must be set when notify is enabled")
	}
	if c.Mirror.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn must be set when mirror is enabled")
	}
	return nil
}
