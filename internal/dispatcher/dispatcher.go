// Package dispatcher fans a batch of crawl work out to a bounded worker pool.
package dispatcher

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task processes the i-th item of a batch.
type Task func(ctx context.Context, i int) error

// Dispatcher runs batches with at most a fixed number of tasks in flight.
type Dispatcher struct {
	workers int
}

// New creates a Dispatcher. workers below one is treated as one.
func New(workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{workers: workers}
}

// Workers returns the pool size.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Run invokes task for every index in [0, n) and blocks until all started
// tasks return. The first task error cancels the context handed to the rest
// and is returned. Cancellation of ctx stops new tasks from starting.
func (d *Dispatcher) Run(ctx context.Context, n int, task Task) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return task(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("dispatch batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("dispatch batch: %w", err)
	}
	return nil
}
