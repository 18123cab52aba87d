// Package trial manages the time- and balance-bounded trial window.
//
// Ending a trial only flips the active flag. Unused trial credit stays
// spendable afterward and keeps first consumption priority; this is the
// documented business policy, not an oversight.
package trial

import "time"

// Phase is the trial state machine position.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	PhaseEnded      Phase = "ended"
)

// State is the persisted trial metadata of an account.
type State struct {
	StartedAt *time.Time
	Duration  time.Duration
	Ended     bool
}

// Status evaluates the trial phase at the given instant. Expiry is lazy:
// there is no background timer, callers evaluate on access.
func Status(state State, now time.Time) Phase {
	if state.StartedAt == nil {
		return PhaseNotStarted
	}
	if state.Ended {
		return PhaseEnded
	}
	if !now.Before(state.StartedAt.Add(state.Duration)) {
		return PhaseEnded
	}
	return PhaseActive
}

// EndsAt returns the wall-clock end of the trial window, or nil when the
// trial never started.
func (s State) EndsAt() *time.Time {
	if s.StartedAt == nil {
		return nil
	}
	at := s.StartedAt.Add(s.Duration)
	return &at
}
