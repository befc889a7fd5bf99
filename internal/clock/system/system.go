// Package system provides the wall clock used for crawl timings.
package system

import "time"

// Clock implements crawler.Clock. Readings keep the monotonic component so
// durations survive wall-clock steps during a long crawl.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time with its monotonic reading.
func (Clock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since start, never less than zero.
func (Clock) Since(start time.Time) time.Duration {
	if d := time.Since(start); d > 0 {
		return d
	}
	return 0
}
