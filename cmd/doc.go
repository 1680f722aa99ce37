// Package cmd hosts the CLI behind the showtimes executable.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes GET /movies plus health, readiness, and metrics endpoints.
//     Query parameters are validated into a showtime.Query before any work happens.
//   - Orchestration: internal/service looks the query's key up in the configured cache.Store and, on a
//     miss, runs one crawl per key no matter how many requests are waiting on it.
//   - Crawl pipeline: internal/crawler follows the listing's "Next" links page by page through the
//     colly (or chromedp) fetcher, pacing requests per host and optionally archiving raw pages.
//     internal/extract turns each page into theatres and movies.
//   - Expiry: internal/expiry caches each result until midnight at the queried location, using
//     internal/geo to learn the location's UTC offset.
//   - Side effects: completed crawls may be mirrored to Postgres and announced on Pub/Sub.
package cmd
