package recorder

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type formatter func(w *bufio.Writer) func(record []string) error

func formatLine(w *bufio.Writer) func([]string) error {
	return func(record []string) error {
		if _, err := w.WriteString(strings.Join(record, " ")); err != nil {
			return err
		}
		return w.WriteByte('\n')
	}
}

func formatCSV(w *bufio.Writer) func([]string) error {
	cw := csv.NewWriter(w)
	return func(record []string) error {
		if err := cw.Write(record); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}
}

type sink struct {
	path   string
	file   io.Closer
	buf    *bufio.Writer
	encode func([]string) error
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan []string
	done   chan struct{}
	err    error
}

func openSink(path string, format formatter, buffer int, logger *zap.Logger) (*sink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}
	// #nosec G304 -- output paths come from operator configuration.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	s := &sink{
		path:   path,
		file:   f,
		buf:    buf,
		encode: format(buf),
		logger: logger.With(zap.String("file", path)),
		queue:  make(chan []string, buffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *sink) write(record []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Debug("write after close dropped")
		return
	}
	s.queue <- record
}

func (s *sink) run() {
	defer close(s.done)
	for record := range s.queue {
		if s.err != nil {
			continue
		}
		if err := s.encode(record); err != nil {
			s.fail(err)
			continue
		}
		if len(s.queue) == 0 {
			if err := s.buf.Flush(); err != nil {
				s.fail(err)
			}
		}
	}
}

func (s *sink) fail(err error) {
	s.err = fmt.Errorf("write %s: %w", s.path, err)
	s.logger.Error("output write failed; further records dropped", zap.Error(err))
}

func (s *sink) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	err := s.err
	if flushErr := s.buf.Flush(); err == nil && flushErr != nil {
		err = fmt.Errorf("flush %s: %w", s.path, flushErr)
	}
	if closeErr := s.file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close %s: %w", s.path, closeErr)
	}
	return err
}
