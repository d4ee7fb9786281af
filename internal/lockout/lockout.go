// Package lockout holds the failed-access state machine. It is pure: callers
// load State from a store, apply a transition, and persist the result.
package lockout

import "time"

// Policy configures when repeated failures lock an account.
type Policy struct {
	MaxFailedAccessAttempts int
	DefaultLockoutTimeSpan  time.Duration
}

// State is the persisted lockout record for one user.
type State struct {
	FailedAccessCount int
	End               *time.Time
	Enabled           bool
}

// Transition describes what AccessFailed did.
type Transition int

const (
	// Counted means the counter grew and the account stayed unlocked.
	Counted Transition = iota
	// Locked means the threshold was reached: End was set and the counter reset.
	Locked
)

// IsLockedOut is true iff lockout is enabled and End is strictly after now.
func IsLockedOut(s State, now time.Time) bool {
	return s.Enabled && s.End != nil && s.End.After(now)
}

// AccessFailed records one failure. The counter grows even when lockout is
// disabled; it only locks when enabled and the threshold is met.
func AccessFailed(s State, p Policy, now time.Time) (State, Transition) {
	s.FailedAccessCount++
	return Evaluate(s, p, now)
}

// Evaluate applies the threshold to a state whose counter was already
// incremented, e.g. by an atomic store primitive.
func Evaluate(s State, p Policy, now time.Time) (State, Transition) {
	if !s.Enabled || p.MaxFailedAccessAttempts <= 0 || s.FailedAccessCount < p.MaxFailedAccessAttempts {
		return s, Counted
	}
	end := now.Add(p.DefaultLockoutTimeSpan)
	s.End = &end
	s.FailedAccessCount = 0
	return s, Locked
}

// Reset clears the counter.
func Reset(s State) State {
	s.FailedAccessCount = 0
	return s
}
