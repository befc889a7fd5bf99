package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsEveryIndex(t *testing.T) {
	t.Parallel()

	d := New(3)
	var mu sync.Mutex
	seen := make(map[int]int)
	err := d.Run(context.Background(), 10, func(_ context.Context, i int) error {
		mu.Lock()
		defer mu.Unlock()
		seen[i]++
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 10)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 1, seen[i], "index %d", i)
	}
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	t.Parallel()

	d := New(2)
	var inFlight, peak atomic.Int32
	err := d.Run(context.Background(), 8, func(_ context.Context, _ int) error {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatcherPropagatesTaskError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	err := New(1).Run(context.Background(), 5, func(_ context.Context, i int) error {
		if i == 1 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	err := New(4).Run(ctx, 100, func(context.Context, int) error {
		calls.Add(1)
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestNewClampsWorkers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, New(0).Workers())
	assert.Equal(t, 1, New(-3).Workers())
	assert.Equal(t, 4, New(4).Workers())
}
