package crawler

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/progress"
)

// Config holds the settings for a crawl run. It is decoupled from Viper so
// the engine can be built and tested without a config file.
type Config struct {
	// Seeds are the starting URLs; their hosts define the internal domains.
	Seeds []string
	// DeleteParams are unanchored regular expressions matched against query keys.
	DeleteParams []string
	// SkipDomains are hosts excluded entirely.
	SkipDomains []string
	// SkipURLs are host+path prefixes excluded from the crawl.
	SkipURLs []string
	// Concurrency bounds the fetches in flight within a round.
	Concurrency int
	// MaxRedirects is the redirect cap the fetcher enforces.
	MaxRedirects int
	// ShuffleSeed makes the per-round shuffle reproducible; zero picks a random seed.
	ShuffleSeed uint64
}

// Validate checks the seeds, skip entries and delete-param patterns without
// building an engine. Problems are returned as *ConfigError.
func (c Config) Validate() error {
	if len(c.Seeds) == 0 {
		return configErr("links", "", ErrNoSeeds)
	}
	if _, err := NewNormalizer(c.DeleteParams); err != nil {
		return err
	}
	if _, err := NewDomainPolicy(c.Seeds, c.SkipDomains, c.SkipURLs); err != nil {
		return err
	}
	return nil
}

// Dependencies are the collaborators the engine drives. Fetcher, Pages, and
// Recorder are required; the rest fall back to no-op or system defaults.
type Dependencies struct {
	Fetcher  Fetcher
	Pages    PageFetcher
	Recorder Recorder
	Hasher   Hasher
	Clock    Clock
	IDs      IDGenerator
	Progress progress.Emitter
	Logger   *zap.Logger
}

// Crawler runs a crawl to completion.
type Crawler interface {
	Run(ctx context.Context) error
}
