package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/progress/sinks"
)

// ProgressReader serves run snapshots. *sinks.SnapshotSink implements it.
type ProgressReader interface {
	Latest() (sinks.Snapshot, bool)
	Get(runID uuid.UUID) (sinks.Snapshot, bool)
}

// ProgressHandler exposes read-only crawl progress endpoints.
type ProgressHandler struct {
	reader ProgressReader
	logger *zap.Logger
}

// NewProgressHandler wires the snapshot reader and logger.
func NewProgressHandler(reader ProgressReader, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{reader: reader, logger: logger}
}

// Latest handles GET /v1/progress. It returns {"run": {...}} for the most
// recently started run, 404 before any run starts, or 503 without a reader.
func (h *ProgressHandler) Latest(w http.ResponseWriter, _ *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "progress unavailable")
		return
	}
	snap, ok := h.reader.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no crawl has started")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": snap})
}

// GetRun handles GET /v1/progress/{run_id}.
func (h *ProgressHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "progress unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := h.reader.Get(runID)
	if !ok {
		h.logger.Debug("run not found", zap.Stringer("run_id", runID))
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": snap})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "run_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("run_id is required")
	}
	runID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run_id")
	}
	return runID, nil
}
