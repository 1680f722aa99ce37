package crawler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/showtimes/internal/showtime"
)

// FetchRequest captures everything needed to fetch a listing page.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation. URL is the
// final URL after redirects and is used to resolve relative links.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Result is the outcome of a full crawl.
type Result struct {
	Theatres []showtime.Theatre
	Title    string
	URLs     []string
	Warnings []string
	// Truncated reports that the page limit stopped the crawl while a "Next"
	// link was still present.
	Truncated bool
}

// StatusError reports a page that was fetched with a non-success status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}
