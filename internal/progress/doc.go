// Package progress provides the event primitives, non-blocking hub, and
// emitter interface the crawl engine uses to report run, round, and fetch
// milestones. Events are batched on a background goroutine and fanned out to
// pluggable sinks such as structured logs, Prometheus metrics, or the
// in-memory snapshot served by the status API.
package progress
