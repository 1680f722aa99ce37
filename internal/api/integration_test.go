package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/showtimes/internal/crawler"
	collyfetcher "github.com/JakeFAU/showtimes/internal/fetcher/colly"
	"github.com/JakeFAU/showtimes/internal/service"
	"github.com/JakeFAU/showtimes/internal/showtime"
	"github.com/JakeFAU/showtimes/internal/storage/memory"
)

func TestMoviesEndToEnd(t *testing.T) {
	t.Parallel()

	page1, err := os.ReadFile("../extract/testdata/page1.html")
	require.NoError(t, err)
	page2, err := os.ReadFile("../extract/testdata/page2.html")
	require.NoError(t, err)

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Query().Get("start") == "10" {
			_, _ = w.Write(page2)
			return
		}
		_, _ = w.Write(page1)
	}))
	t.Cleanup(upstream.Close)

	fetcher := collyfetcher.New(collyfetcher.Config{})
	c := crawler.New(crawler.Config{}, fetcher, zap.NewNop())
	store := memory.NewCacheStore(nil)
	svc := service.New(service.Config{BaseURL: upstream.URL + "/movies"}, store, c, nil, zap.NewNop())
	handler := NewServer(svc, Config{}, zap.NewNop()).Handler()

	get := func(target string) []showtime.Theatre {
		t.Helper()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var theatres []showtime.Theatre
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &theatres))
		return theatres
	}

	theatres := get("/movies?near=Chicago&militaryTime=true")
	require.Len(t, theatres, 3)
	require.Equal(t, int32(2), hits.Load())
	require.Equal(t, "Heat", theatres[0].Movies[0].Name)
	require.Equal(t, []string{"11:00", "12:30", "13:15", "15:00"}, theatres[0].Movies[0].Times)

	// Same key, different rendering, served from cache.
	theatres = get("/movies?near=chicago&date=0")
	require.Len(t, theatres, 3)
	require.Equal(t, []string{"11:00", "12:30", "1:15", "3:00"}, theatres[0].Movies[0].Times)
	require.Equal(t, int32(2), hits.Load())
	require.Equal(t, 1, store.Len())
}
