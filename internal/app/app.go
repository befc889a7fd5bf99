// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/clock/system"
	"github.com/JakeFAU/linkcrawler/internal/config"
	"github.com/JakeFAU/linkcrawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/linkcrawler/internal/fetcher/colly"
	"github.com/JakeFAU/linkcrawler/internal/hash/sha256"
	"github.com/JakeFAU/linkcrawler/internal/id/uuid"
	"github.com/JakeFAU/linkcrawler/internal/logging"
	"github.com/JakeFAU/linkcrawler/internal/progress"
	"github.com/JakeFAU/linkcrawler/internal/progress/sinks"
	"github.com/JakeFAU/linkcrawler/internal/recorder"
	"github.com/JakeFAU/linkcrawler/internal/storage"
	"github.com/JakeFAU/linkcrawler/internal/storage/local"
)

// App holds the shared services for one crawl: the page cache, the output
// recorder, the progress hub and its sinks, and the HTTP fetcher.
// It is built once by the crawl command and closed when the command exits.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	pages     *storage.PageCache
	recorder  *recorder.Recorder
	hub       *progress.Hub
	snapshots *sinks.SnapshotSink
	fetcher   *collyfetcher.Fetcher
}

// NewApp initializes every service the crawl needs and fails fast before any
// request is made. reg receives the progress collectors; nil uses the default
// Prometheus registerer.
func NewApp(_ context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initializing application services...")

	// Reject a bad crawl config before the previous run's output is truncated.
	if err := cfg.CrawlerConfig().Validate(); err != nil {
		return nil, err
	}

	blobs, err := local.New(local.Config{BaseDir: cfg.Output.CacheDir})
	if err != nil {
		return nil, &crawler.ConfigError{Field: "output.cache_dir", Value: cfg.Output.CacheDir, Err: err}
	}
	removed, err := blobs.Purge(local.StalePatterns...)
	if err != nil {
		return nil, fmt.Errorf("purge cache dir: %w", err)
	}
	if removed > 0 {
		logger.Info("Removed stale cache entries", zap.String("dir", cfg.Output.CacheDir), zap.Int("count", removed))
	}
	pages := storage.NewPageCache(blobs)

	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}

	rec, err := recorder.Open(recorder.Config{
		LogPath: cfg.Output.LogFile,
		URLPath: cfg.Output.URLFile,
		MapPath: cfg.Output.MapFile,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open recorder: %w", err)
	}

	snapshots := sinks.NewSnapshotSink()
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		snapshots,
	)

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.HTTP.UserAgent,
		ConnectTimeout: cfg.HTTP.ConnectTimeout,
		Timeout:        cfg.HTTP.Timeout,
		MaxRedirects:   cfg.HTTP.MaxRedirects,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		HeadFallback:   cfg.HTTP.HeadFallback,
	}, pages, logger.Named("fetcher"))

	logger.Info("Application services initialized successfully.")

	return &App{
		cfg:       cfg,
		logger:    logger,
		pages:     pages,
		recorder:  rec,
		hub:       hub,
		snapshots: snapshots,
		fetcher:   fetcher,
	}, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the services were built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Pages exposes the page cache.
func (a *App) Pages() *storage.PageCache {
	return a.pages
}

// Recorder exposes the crawl output files.
func (a *App) Recorder() *recorder.Recorder {
	return a.recorder
}

// Progress returns the hub the engine emits events to.
func (a *App) Progress() *progress.Hub {
	return a.hub
}

// Snapshots returns the sink backing the status server's progress endpoints.
func (a *App) Snapshots() *sinks.SnapshotSink {
	return a.snapshots
}

// Fetcher returns the colly-backed fetcher.
func (a *App) Fetcher() *collyfetcher.Fetcher {
	return a.fetcher
}

// Started reports whether a crawl run has published its start event.
func (a *App) Started() bool {
	_, ok := a.snapshots.Latest()
	return ok
}

// NewEngine builds a crawl engine wired to the app's services.
func (a *App) NewEngine() (*crawler.Engine, error) {
	return crawler.NewEngine(a.cfg.CrawlerConfig(), crawler.Dependencies{
		Fetcher:  a.fetcher,
		Pages:    a.fetcher,
		Recorder: a.recorder,
		Hasher:   sha256.New(),
		Clock:    system.New(),
		IDs:      uuid.NewUUIDGenerator(),
		Progress: a.hub,
		Logger:   a.logger.Named("crawler"),
	})
}

// Close drains the progress hub, flushes the output files and syncs the logger.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("Shutting down application services...")
	var errs []error
	if err := a.hub.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close progress hub: %w", err))
	}
	if err := a.recorder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close recorder: %w", err))
	}
	if err := logging.Sync(a.logger); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
