// Package local implements the page cache directory on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrMissingDir is returned when the cache directory does not exist.
var ErrMissingDir = errors.New("cache directory does not exist")

// StalePatterns match the artifacts a previous run leaves in the cache directory.
var StalePatterns = []string{"file*.html", "cookie*.txt"}

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the existing directory where pages are written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes pages to the local filesystem.
type BlobStore struct {
	baseDir string
}

// New opens an existing, writable cache directory. It never creates one.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingDir, cfg.BaseDir)
		}
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &BlobStore{baseDir: cfg.BaseDir}, nil
}

// Purge removes files matching patterns from the base directory and returns
// how many were removed.
func (s *BlobStore) Purge(patterns ...string) (int, error) {
	removed := 0
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(s.baseDir, pattern))
		if err != nil {
			return removed, fmt.Errorf("bad purge pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			info, err := os.Lstat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("failed to remove %s: %w", match, err)
			}
			removed++
		}
	}
	return removed, nil
}

// PutObject writes data to a file under the base directory and returns a file:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(s.baseDir, path)

	// Keep writes inside baseDir.
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}

	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	if err := os.WriteFile(fullPath, byteData, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fmt.Sprintf("file://%s", fullPath), nil
}
