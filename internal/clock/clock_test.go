package clock

import (
	"testing"
	"time"
)

func TestSystemClock_ReturnsUTC(t *testing.T) {
	now := NewSystem().Now()
	if now.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", now.Location())
	}
}

func TestFixed_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := NewFixed(start)

	if !clk.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, clk.Now())
	}

	clk.Advance(90 * time.Second)
	if want := start.Add(90 * time.Second); !clk.Now().Equal(want) {
		t.Errorf("expected %v, got %v", want, clk.Now())
	}

	later := start.Add(24 * time.Hour)
	clk.Set(later)
	if !clk.Now().Equal(later) {
		t.Errorf("expected %v, got %v", later, clk.Now())
	}
}
