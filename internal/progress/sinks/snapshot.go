package sinks

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/linkcrawler/internal/progress"
)

// RunState is the lifecycle state of a crawl run.
type RunState string

// Run states reported by the snapshot sink.
const (
	RunRunning RunState = "running"
	RunDone    RunState = "done"
	RunFailed  RunState = "error"
)

// Snapshot is the aggregated view of one crawl run.
type Snapshot struct {
	RunID       string           `json:"run_id"`
	State       RunState         `json:"state"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Round       int              `json:"round"`
	Queued      int              `json:"queued"`
	Checked     int64            `json:"checked"`
	Bytes       int64            `json:"bytes"`
	StatusClass map[string]int64 `json:"status_classes"`
	Sites       map[string]int64 `json:"sites"`
	LastURL     string           `json:"last_url,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// SnapshotSink folds events into an in-memory Snapshot per run so the status
// API can report progress while a crawl is running.
type SnapshotSink struct {
	mu     sync.RWMutex
	runs   map[[16]byte]*Snapshot
	latest [16]byte
}

// NewSnapshotSink constructs an empty SnapshotSink.
func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{runs: make(map[[16]byte]*Snapshot)}
}

// Consume folds the batch into the per-run snapshots.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		snap := s.runFor(evt)
		switch evt.Stage {
		case progress.StageCrawlStart:
			snap.StartedAt = evt.TS
		case progress.StageRoundStart:
			snap.Round = evt.Round
			snap.Queued = evt.Queued
		case progress.StageRoundDone:
			snap.Queued = evt.Queued
		case progress.StageFetchDone:
			snap.Checked += evt.Checked
			snap.Bytes += evt.Bytes
			snap.StatusClass[string(evt.StatusClass)]++
			snap.Sites[evt.Site]++
			snap.LastURL = evt.URL
		case progress.StageCrawlDone:
			s.finish(snap, evt, RunDone)
		case progress.StageCrawlError:
			s.finish(snap, evt, RunFailed)
			snap.Error = evt.Note
		}
	}
	return nil
}

func (s *SnapshotSink) runFor(evt progress.Event) *Snapshot {
	snap, ok := s.runs[evt.RunID]
	if !ok {
		snap = &Snapshot{
			RunID:       evt.RunUUID().String(),
			State:       RunRunning,
			StartedAt:   evt.TS,
			StatusClass: make(map[string]int64),
			Sites:       make(map[string]int64),
		}
		s.runs[evt.RunID] = snap
		s.latest = evt.RunID
	}
	return snap
}

func (s *SnapshotSink) finish(snap *Snapshot, evt progress.Event, state RunState) {
	ts := evt.TS
	snap.State = state
	snap.FinishedAt = &ts
	snap.Queued = 0
}

// Latest returns a copy of the most recently started run.
func (s *SnapshotSink) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.runs[s.latest]
	if !ok {
		return Snapshot{}, false
	}
	return cloneSnapshot(snap), true
}

// Get returns a copy of the snapshot for runID.
func (s *SnapshotSink) Get(runID uuid.UUID) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.runs[progress.UUIDToBytes(runID)]
	if !ok {
		return Snapshot{}, false
	}
	return cloneSnapshot(snap), true
}

// Close implements the Sink interface; snapshots stay readable afterwards.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}

func cloneSnapshot(snap *Snapshot) Snapshot {
	out := *snap
	out.StatusClass = maps.Clone(snap.StatusClass)
	out.Sites = maps.Clone(snap.Sites)
	if snap.FinishedAt != nil {
		ts := *snap.FinishedAt
		out.FinishedAt = &ts
	}
	return out
}
