package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/linkcrawler/internal/progress"
)

// PrometheusSink exports crawl progress via Prometheus. It owns the
// collectors for runs started/completed/running, rounds, and per-site fetches.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runDuration   *prometheus.HistogramVec
	roundDuration prometheus.Histogram
	roundQueued   prometheus.Gauge

	fetches       *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkcrawler_runs_started_total",
			Help: "Total crawl runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkcrawler_runs_completed_total",
			Help: "Total crawl runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linkcrawler_runs_running",
			Help: "Current number of running crawls.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkcrawler_run_duration_seconds",
			Help:    "Wall time per completed crawl run.",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		}, []string{"result"}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkcrawler_round_duration_seconds",
			Help:    "Wall time per crawl round.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		roundQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linkcrawler_round_queued_urls",
			Help: "URLs queued for the most recently started round.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkcrawler_fetches_total",
			Help: "Checks completed partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkcrawler_fetch_bytes_total",
			Help: "Page bytes downloaded for link extraction per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkcrawler_fetch_duration_seconds",
			Help:    "Check duration partitioned by site and status class.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15},
		}, []string{"site", "status_class"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runDuration,
		s.roundDuration,
		s.roundQueued,
		s.fetches,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageCrawlStart:
			s.runsStarted.Inc()
			if s.tracker.start(evt.RunID) {
				s.runsRunning.Inc()
			}
		case progress.StageCrawlDone:
			s.finishRun(evt, "success")
		case progress.StageCrawlError:
			s.finishRun(evt, "error")
		case progress.StageRoundStart:
			s.roundQueued.Set(float64(evt.Queued))
		case progress.StageRoundDone:
			if evt.Dur > 0 {
				s.roundDuration.Observe(evt.Dur.Seconds())
			}
		case progress.StageFetchDone:
			s.observeFetch(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) finishRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) observeFetch(evt progress.Event) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.fetches.WithLabelValues(site, statusClass).Inc()
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(site).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(site, statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
