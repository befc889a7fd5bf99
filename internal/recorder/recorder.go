// Package recorder persists crawl results to three append-only files: the
// crawl log, the URL table, and the site-map table.
package recorder

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Config names the output files. Each is truncated when opened.
type Config struct {
	LogPath string
	URLPath string
	MapPath string
	// Buffer is the per-file queue length. Zero uses a default.
	Buffer int
}

// Recorder implements crawler.Recorder. Calls are safe from any goroutine;
// each file is written by its own goroutine in call order.
type Recorder struct {
	log  *sink
	urls *sink
	maps *sink
}

// Open creates or truncates the three files and starts their writers.
func Open(cfg Config, logger *zap.Logger) (*Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	log, err := openSink(cfg.LogPath, formatLine, cfg.Buffer, logger)
	if err != nil {
		return nil, fmt.Errorf("open crawl log: %w", err)
	}
	urls, err := openSink(cfg.URLPath, formatCSV, cfg.Buffer, logger)
	if err != nil {
		_ = log.close()
		return nil, fmt.Errorf("open url table: %w", err)
	}
	maps, err := openSink(cfg.MapPath, formatCSV, cfg.Buffer, logger)
	if err != nil {
		_ = log.close()
		_ = urls.close()
		return nil, fmt.Errorf("open site map: %w", err)
	}
	return &Recorder{log: log, urls: urls, maps: maps}, nil
}

// WriteLogLine appends text as one line. Empty text is ignored.
func (r *Recorder) WriteLogLine(text string) {
	if text == "" {
		return
	}
	r.log.write([]string{text})
}

// WriteURLRow appends an effective_url,http_code row.
func (r *Recorder) WriteURLRow(effectiveURL string, httpCode int) {
	if effectiveURL == "" {
		return
	}
	r.urls.write([]string{effectiveURL, strconv.Itoa(httpCode)})
}

// WriteMapRow appends a source_url,dest_url row.
func (r *Recorder) WriteMapRow(sourceURL, destURL string) {
	if sourceURL == "" || destURL == "" {
		return
	}
	r.maps.write([]string{sourceURL, destURL})
}

// Close drains pending writes, flushes, and closes every file. Writes after
// Close are dropped.
func (r *Recorder) Close() error {
	return errors.Join(r.log.close(), r.urls.close(), r.maps.close())
}
