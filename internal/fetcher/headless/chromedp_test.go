package headless

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
)

func TestNewChromedpDefaults(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	fetcher, err := NewChromedp(Config{MaxParallel: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer fetcher.Close()
	if cap(fetcher.slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", cap(fetcher.slots))
	}
	if fetcher.cfg.NavigationTimeout != defaultNavigationTimeout {
		t.Fatalf("expected default nav timeout, got %v", fetcher.cfg.NavigationTimeout)
	}
	if fetcher.cfg.WaitSelector != "body" {
		t.Fatalf("expected default wait selector, got %q", fetcher.cfg.WaitSelector)
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	f := &Fetcher{slots: make(chan struct{}, 1)}
	if err := f.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	f.release()
	if err := f.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	netHeaders := toNetworkHeaders(http.Header{
		"X-Multi":  {"a", "b"},
		"X-Single": {"one"},
		"X-Empty":  {},
	})
	if v, ok := netHeaders["X-Multi"].([]string); !ok || len(v) != 2 {
		t.Fatalf("expected two entries, got %v", netHeaders["X-Multi"])
	}
	if netHeaders["X-Single"] != "one" {
		t.Fatalf("expected single value, got %v", netHeaders["X-Single"])
	}
	if _, ok := netHeaders["X-Empty"]; ok {
		t.Fatal("expected empty header to be skipped")
	}
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := &responseMeta{}
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  200,
			URL:     "https://www.google.com/movies?near=chicago",
			Headers: network.Headers{"Content-Type": "text/html"},
		},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404, URL: "https://ads.example/frame"},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500, URL: "https://cdn.example/app.js"},
	})

	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	if status != 200 || headers.Get("Content-Type") != "text/html" || url != "https://www.google.com/movies?near=chicago" {
		t.Fatalf("unexpected snapshot values: status=%d headers=%v url=%s", status, headers, url)
	}

	meta = &responseMeta{}
	status, headers, url = meta.snapshotWithFallbacks("https://req", "https://final")
	if status != http.StatusOK || url != "https://final" || headers == nil {
		t.Fatalf("expected fallback values, got status=%d url=%s", status, url)
	}
}
