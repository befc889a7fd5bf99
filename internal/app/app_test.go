// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/app"
	"github.com/JakeFAU/linkcrawler/internal/config"
	"github.com/JakeFAU/linkcrawler/internal/crawler"
	"github.com/JakeFAU/linkcrawler/internal/progress/sinks"
)

func testConfig(t *testing.T, seeds ...string) config.Config {
	t.Helper()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	require.NoError(t, os.Mkdir(cacheDir, 0o755))
	return config.Config{
		Crawl: config.CrawlConfig{
			Links:       seeds,
			Concurrency: 2,
			ShuffleSeed: 1,
		},
		HTTP: config.HTTPConfig{
			ConnectTimeout: time.Second,
			Timeout:        2 * time.Second,
			MaxRedirects:   crawler.DefaultMaxRedirects,
			HeadFallback:   true,
		},
		Output: config.OutputConfig{
			CacheDir: cacheDir,
			LogFile:  filepath.Join(dir, "linkcrawler.log"),
			URLFile:  filepath.Join(dir, "urls.csv"),
			MapFile:  filepath.Join(dir, "map.csv"),
		},
	}
}

func TestNewAppPurgesStaleCache(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://site.test/")
	for _, name := range []string{"file1.html", "file22.html", "cookie3.txt", "keep.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Output.CacheDir, name), []byte("x"), 0o600))
	}

	a, err := app.NewApp(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	entries, err := os.ReadDir(cfg.Output.CacheDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.txt", entries[0].Name())

	assert.NotNil(t, a.Logger())
	assert.NotNil(t, a.Fetcher())
	assert.NotNil(t, a.Recorder())
	assert.NotNil(t, a.Progress())
	assert.NotNil(t, a.Snapshots())
	assert.Equal(t, 0, a.Pages().Stored())
	assert.Equal(t, cfg.Output.CacheDir, a.Config().Output.CacheDir)
}

func TestNewAppMissingCacheDir(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://site.test/")
	cfg.Output.CacheDir = filepath.Join(t.TempDir(), "absent")

	_, err := app.NewApp(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
	require.Error(t, err)
	var cfgErr *crawler.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "output.cache_dir", cfgErr.Field)

	_, statErr := os.Stat(cfg.Output.LogFile)
	assert.True(t, os.IsNotExist(statErr), "no output file should be created")
}

func TestNewAppInvalidCrawlConfigKeepsPreviousOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{name: "bad delete param", mutate: func(c *config.Config) { c.Crawl.DeleteParams = []string{"("} }, field: "delete_params"},
		{name: "seed without scheme", mutate: func(c *config.Config) { c.Crawl.Links = []string{"site.test"} }, field: "links"},
		{name: "skip url without host", mutate: func(c *config.Config) { c.Crawl.SkipURLs = []string{"https://"} }, field: "skip_urls"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t, "http://site.test/")
			tt.mutate(&cfg)
			cached := filepath.Join(cfg.Output.CacheDir, "file1.html")
			require.NoError(t, os.WriteFile(cached, []byte("previous"), 0o600))
			require.NoError(t, os.WriteFile(cfg.Output.URLFile, []byte("http://site.test/,200\n"), 0o600))

			_, err := app.NewApp(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
			var cfgErr *crawler.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)

			assert.FileExists(t, cached)
			urls, err := os.ReadFile(cfg.Output.URLFile)
			require.NoError(t, err)
			assert.Equal(t, "http://site.test/,200\n", string(urls))
		})
	}
}

func TestNewAppDuplicateRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := app.NewApp(context.Background(), testConfig(t, "http://site.test/"), nil, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close(context.Background()) })

	_, err = app.NewApp(context.Background(), testConfig(t, "http://site.test/"), nil, reg)
	require.Error(t, err)
}

func TestAppRunsCrawl(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a href="/about">About</a><a href="/gone">Gone</a></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/">Home</a></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testConfig(t, srv.URL+"/")
	a, err := app.NewApp(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)

	engine, err := a.NewEngine()
	require.NoError(t, err)
	assert.False(t, a.Started())
	require.NoError(t, engine.Run(context.Background()))
	assert.Eventually(t, a.Started, time.Second, 5*time.Millisecond)
	require.NoError(t, a.Close(context.Background()))

	assert.Equal(t, 2, a.Pages().Stored())
	assert.FileExists(t, filepath.Join(cfg.Output.CacheDir, "file1.html"))
	assert.FileExists(t, filepath.Join(cfg.Output.CacheDir, "file2.html"))

	urls, err := os.ReadFile(cfg.Output.URLFile)
	require.NoError(t, err)
	assert.Contains(t, string(urls), srv.URL+"/,200\n")
	assert.Contains(t, string(urls), srv.URL+"/about,200\n")
	assert.Contains(t, string(urls), srv.URL+"/gone,404\n")

	siteMap, err := os.ReadFile(cfg.Output.MapFile)
	require.NoError(t, err)
	assert.Contains(t, string(siteMap), srv.URL+"/,"+srv.URL+"/about\n")
	assert.Contains(t, string(siteMap), srv.URL+"/about,"+srv.URL+"/\n")

	snap, ok := a.Snapshots().Latest()
	require.True(t, ok)
	assert.Equal(t, sinks.RunDone, snap.State)
}
