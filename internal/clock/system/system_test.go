package system

import (
	"testing"
	"time"
)

func TestClockNow(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now()
	got := clk.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestClockSince(t *testing.T) {
	t.Parallel()

	clk := New()
	start := clk.Now()
	time.Sleep(2 * time.Millisecond)
	if d := clk.Since(start); d < 2*time.Millisecond {
		t.Fatalf("expected at least 2ms elapsed, got %v", d)
	}
	if d := clk.Since(time.Now().Add(time.Hour)); d != 0 {
		t.Fatalf("expected a future start to clamp to zero, got %v", d)
	}
}
