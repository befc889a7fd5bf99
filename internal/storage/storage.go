// Package storage defines where fetched page bodies are kept and hands out
// the sequential cache names the crawl log refers to.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
)

// BlobStore persists an object under a relative path and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// PageCache numbers cached pages 1, 2, 3... across a run and stores each body
// as file<N>.html.
type PageCache struct {
	store BlobStore
	seq   atomic.Int64
}

// NewPageCache wraps store.
func NewPageCache(store BlobStore) *PageCache {
	return &PageCache{store: store}
}

// PageName returns the object name for cache id.
func PageName(id int) string {
	return fmt.Sprintf("file%d.html", id)
}

// Store saves body under the next sequence number and returns that number.
// A failed write still consumes its number.
func (c *PageCache) Store(ctx context.Context, body []byte) (int, error) {
	id := int(c.seq.Add(1))
	if _, err := c.store.PutObject(ctx, PageName(id), "text/html", bytes.NewReader(body)); err != nil {
		return 0, fmt.Errorf("store %s: %w", PageName(id), err)
	}
	return id, nil
}

// Stored returns how many sequence numbers have been handed out.
func (c *PageCache) Stored() int {
	return int(c.seq.Load())
}
