package crawler

import (
	"context"
	"time"
)

// Fetcher checks a URL and reports status, effective URL, redirects, and MIME type.
// useSession asks the fetcher to reuse the per-host cookie session.
type Fetcher interface {
	Fetch(ctx context.Context, url string, useSession bool) (FetchResult, error)
}

// PageFetcher downloads an internal HTML page, caches the body, and returns
// its raw outbound link strings.
type PageFetcher interface {
	FetchLinks(ctx context.Context, effectiveURL string) (PageLinks, error)
}

// Recorder persists crawl output. Every call appends a single record; empty
// input is ignored.
type Recorder interface {
	WriteLogLine(text string)
	WriteURLRow(effectiveURL string, httpCode int)
	WriteMapRow(sourceURL, destURL string)
}

// Hasher computes digests for site-map edge deduplication.
type Hasher interface {
	HashEdge(source, dest string) (string, error)
}

// Clock returns the current time and elapsed durations (useful for testing).
type Clock interface {
	Now() time.Time
	Since(start time.Time) time.Duration
}

// IDGenerator produces crawl run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
