// Package metrics exposes Prometheus collectors for the showtimes service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlPagesTotal            *prometheus.CounterVec
	crawlBytesTotal            *prometheus.CounterVec
	crawlsTotal                *prometheus.CounterVec
	crawlDurationSeconds       prometheus.Histogram
	extractionWarningsTotal    prometheus.Counter
	cacheLookupsTotal          *prometheus.CounterVec
	cacheWritesTotal           *prometheus.CounterVec
	geocodeFailuresTotal       prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showtimes_crawl_pages_total",
				Help: "Total number of listing pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showtimes_crawl_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showtimes_crawls_total",
				Help: "Total number of full listing crawls, labeled by outcome.",
			},
			[]string{"status"},
		)

		crawlDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "showtimes_crawl_duration_seconds",
				Help:    "Histogram of full crawl durations.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		extractionWarningsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "showtimes_extraction_warnings_total",
				Help: "Total number of field-level warnings recorded during extraction.",
			},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showtimes_cache_lookups_total",
				Help: "Total number of cache lookups, labeled by result (hit, miss, error).",
			},
			[]string{"result"},
		)

		cacheWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showtimes_cache_writes_total",
				Help: "Total number of cache writes, labeled by status.",
			},
			[]string{"status"},
		)

		geocodeFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "showtimes_geocode_failures_total",
				Help: "Total number of failed UTC offset resolutions.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "showtimes_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") && !strings.HasPrefix(rawURL, "file:") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	if u.Scheme == "file" {
		return "file"
	}
	if u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one fetched listing page.
func ObservePage(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveCrawl records the outcome and duration of a full crawl.
func ObserveCrawl(status string, duration time.Duration) {
	Init()
	crawlsTotal.WithLabelValues(status).Inc()
	crawlDurationSeconds.Observe(duration.Seconds())
}

// ObserveExtractionWarnings adds n field-level extraction warnings.
func ObserveExtractionWarnings(n int) {
	Init()
	if n > 0 {
		extractionWarningsTotal.Add(float64(n))
	}
}

// ObserveCacheLookup records a cache lookup result: "hit", "miss" or "error".
func ObserveCacheLookup(result string) {
	Init()
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveCacheWrite records a cache write outcome.
func ObserveCacheWrite(status string) {
	Init()
	cacheWritesTotal.WithLabelValues(status).Inc()
}

// ObserveGeocodeFailure increments the failed offset resolution counter.
func ObserveGeocodeFailure() {
	Init()
	geocodeFailuresTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
