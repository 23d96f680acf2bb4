package clock

import (
	"testing"
	"time"
)

func TestManualClock_AdvanceAndSet(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now()=%v, want %v", got, start)
	}
	if got := c.Advance(time.Hour); !got.Equal(start.Add(time.Hour)) {
		t.Fatalf("Advance()=%v, want %v", got, start.Add(time.Hour))
	}
	later := start.Add(48 * time.Hour)
	c.Set(later)
	if got := c.Now(); !got.Equal(later) {
		t.Fatalf("Now() after Set=%v, want %v", got, later)
	}
}
