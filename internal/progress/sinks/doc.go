// Package sinks implements concrete progress consumers: structured logging,
// Prometheus metrics, and an in-memory snapshot of each crawl run. Each sink
// satisfies progress.Sink and is safe for repeated Consume/Close cycles.
package sinks
