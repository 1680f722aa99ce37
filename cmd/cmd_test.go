package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/showtimes/internal/app"
	"github.com/JakeFAU/showtimes/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlCommandReadsSavedPage(t *testing.T) {
	out, err := execute(t, "crawl", "--near", "Hinsdale", "--military", "--file", "../internal/extract/testdata/single_theatre.html")
	require.NoError(t, err)

	var theatres []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &theatres))
	require.Len(t, theatres, 1)
	assert.Equal(t, "Hinsdale Community Theatre", theatres[0]["name"])
	assert.Contains(t, out, "Jaws")
}

func TestCrawlCommandRequiresNear(t *testing.T) {
	_, err := execute(t, "crawl")
	require.ErrorContains(t, err, "near")
}

func TestCrawlCommandRejectsBadDate(t *testing.T) {
	_, err := execute(t, "crawl", "--near", "Chicago", "--date", "soon")
	require.ErrorContains(t, err, "`date` must be a base-10 integer")
}

func TestServeCommandAppliesAddrOverride(t *testing.T) {
	orig := newApp
	t.Cleanup(func() { newApp = orig })

	var got config.Config
	newApp = func(_ context.Context, cfg config.Config) (*app.App, error) {
		got = cfg
		return nil, assert.AnError
	}

	_, err := execute(t, "serve", "--addr", "127.0.0.1:9999")
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "127.0.0.1:9999", got.Server.Addr)
	assert.Equal(t, "memory", got.Cache.Backend)
}

func TestRootRejectsMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", "/nonexistent/showtimes.yaml", "crawl", "--near", "Chicago")
	require.ErrorContains(t, err, "load config")
}
