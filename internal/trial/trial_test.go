package trial

import (
	"testing"
	"time"
)

func TestStatusNotStarted(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := Status(State{}, now); got != PhaseNotStarted {
		t.Fatalf("expected not_started, got %s", got)
	}
}

func TestStatusActiveWithinWindow(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	state := State{StartedAt: &start, Duration: 30 * 24 * time.Hour}

	if got := Status(state, start.Add(29*24*time.Hour)); got != PhaseActive {
		t.Fatalf("expected active, got %s", got)
	}
}

func TestStatusEndsExactlyAtBoundary(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	state := State{StartedAt: &start, Duration: 30 * 24 * time.Hour}

	if got := Status(state, start.Add(30*24*time.Hour)); got != PhaseEnded {
		t.Fatalf("expected ended at boundary, got %s", got)
	}
}

func TestStatusEndedFlagWinsOverWindow(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	state := State{StartedAt: &start, Duration: 30 * 24 * time.Hour, Ended: true}

	// The explicit signal ends the trial even mid-window.
	if got := Status(state, start.Add(time.Hour)); got != PhaseEnded {
		t.Fatalf("expected ended, got %s", got)
	}
}

func TestEndsAt(t *testing.T) {
	if at := (State{}).EndsAt(); at != nil {
		t.Fatalf("expected nil ends_at for unstarted trial, got %v", at)
	}

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	state := State{StartedAt: &start, Duration: 30 * 24 * time.Hour}
	want := start.Add(30 * 24 * time.Hour)
	if at := state.EndsAt(); at == nil || !at.Equal(want) {
		t.Fatalf("expected ends_at %v, got %v", want, at)
	}
}
