// Package api hosts the HTTP server, middleware, and handlers. Notable routes:
//   - GET /movies and /v1/movies answer showtime queries (near, date, militaryTime).
//   - GET /healthz and /readyz for Kubernetes liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
package api
