// Package progress defines the event structures emitted by the crawl engine.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart Stage = "CRAWL_START"
	StageRoundStart Stage = "ROUND_START"
	StageFetchDone  Stage = "FETCH_DONE"
	StageRoundDone  Stage = "ROUND_DONE"
	StageCrawlDone  Stage = "CRAWL_DONE"
	StageCrawlError Stage = "CRAWL_ERROR"
)

// Boundary reports whether the stage opens a run or closes a round or run. The hub flushes
// boundary events without waiting for the batch interval.
func (s Stage) Boundary() bool {
	switch s {
	case StageCrawlStart, StageRoundDone, StageCrawlDone, StageCrawlError:
		return true
	default:
		return false
	}
}

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx    StatusClass = "2xx"
	Status3xx    StatusClass = "3xx"
	Status4xx    StatusClass = "4xx"
	Status5xx    StatusClass = "5xx"
	StatusFailed StatusClass = "failed"
	StatusOther  StatusClass = "other"
)

// Event captures a single milestone of a crawl run.
type Event struct {
	// RunID identifies the crawl run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Round is the 1-based round number; zero for run-level events.
	Round int
	// Site is the host of URL for fetch events.
	Site string
	// URL is the effective URL for fetch events.
	URL string
	// Bytes is the size of the page body downloaded for link extraction.
	Bytes int64
	// Checked is the number of URLs checked (1 for FETCH_DONE, totals otherwise).
	Checked int64
	// Queued is the frontier size at ROUND_START or the next frontier size at ROUND_DONE.
	Queued int
	// StatusClass groups HTTP response codes for fetch events.
	StatusClass StatusClass
	// Dur is the fetch, round, or run latency.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlDone, StageCrawlError:
	case StageRoundStart, StageRoundDone:
		if e.Round <= 0 {
			return fmt.Errorf("%s requires round", e.Stage)
		}
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events. Zero means the
// request never produced a response.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code == 0:
		return StatusFailed
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
