package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/internal/lockout"
)

func (m *Manager) lockoutPolicy() lockout.Policy {
	return lockout.Policy{
		MaxFailedAccessAttempts: m.config.Lockout.MaxFailedAccessAttempts,
		DefaultLockoutTimeSpan:  m.config.Lockout.DefaultLockoutTimeSpan,
	}
}

func toLockoutState(s LockoutState) lockout.State {
	return lockout.State{FailedAccessCount: s.FailedAccessCount, End: s.End, Enabled: s.Enabled}
}

func fromLockoutState(s lockout.State) LockoutState {
	return LockoutState{FailedAccessCount: s.FailedAccessCount, End: s.End, Enabled: s.Enabled}
}

func (m *Manager) lockoutState(ctx context.Context, user *User) (LockoutState, error) {
	if err := m.ready(ctx, user); err != nil {
		return LockoutState{}, err
	}
	if m.caps.lockout == nil {
		return LockoutState{}, notSupported("LockoutStore")
	}
	return m.caps.lockout.GetLockout(ctx, user)
}

// IsLockedOut reports whether lockout is enabled and its end lies in the
// future.
func (m *Manager) IsLockedOut(ctx context.Context, user *User) (bool, error) {
	state, err := m.lockoutState(ctx, user)
	if err != nil {
		return false, err
	}
	return lockout.IsLockedOut(toLockoutState(state), m.now()), nil
}

// AccessFailed records one failed access. Reaching
// Config.Lockout.MaxFailedAccessAttempts locks the user for
// DefaultLockoutTimeSpan and resets the counter. Stores implementing
// AccessFailedCounter increment atomically, so concurrent failures are never
// lost.
func (m *Manager) AccessFailed(ctx context.Context, user *User) (Result, error) {
	state, err := m.lockoutState(ctx, user)
	if err != nil {
		return Result{}, err
	}
	now := m.now()

	var (
		next       lockout.State
		transition lockout.Transition
	)
	if m.caps.counter != nil {
		count, err := m.caps.counter.IncrementAccessFailedCount(ctx, user)
		if err != nil {
			return Result{}, err
		}
		current := toLockoutState(state)
		current.FailedAccessCount = count
		next, transition = lockout.Evaluate(current, m.lockoutPolicy(), now)
	} else {
		next, transition = lockout.AccessFailed(toLockoutState(state), m.lockoutPolicy(), now)
	}
	m.metricInc(MetricAccessFailed)
	m.emitAudit(ctx, auditEventAccessFailed, false, user.ID, nil, nil)

	if m.caps.counter != nil && transition == lockout.Counted {
		return Success(), nil
	}

	if err := m.caps.lockout.SetLockout(ctx, user, fromLockoutState(next)); err != nil {
		return Result{}, err
	}
	res, err := m.updateUser(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}

	if transition == lockout.Locked {
		m.metricInc(MetricLockedOut)
		m.emitAudit(ctx, auditEventLockedOut, true, user.ID, nil, nil)
		m.logger.WarnContext(ctx, "user locked out", attrUserID(user.ID))
	}
	return Success(), nil
}

// ResetAccessFailedCount clears the failure counter.
func (m *Manager) ResetAccessFailedCount(ctx context.Context, user *User) (Result, error) {
	state, err := m.lockoutState(ctx, user)
	if err != nil {
		return Result{}, err
	}
	if state.FailedAccessCount == 0 {
		return Success(), nil
	}
	if err := m.caps.lockout.SetLockout(ctx, user, fromLockoutState(lockout.Reset(toLockoutState(state)))); err != nil {
		return Result{}, err
	}
	res, err := m.updateUser(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}
	m.emitAudit(ctx, auditEventLockoutReset, true, user.ID, nil, nil)
	return Success(), nil
}

// GetAccessFailedCount returns the current failure counter.
func (m *Manager) GetAccessFailedCount(ctx context.Context, user *User) (int, error) {
	state, err := m.lockoutState(ctx, user)
	if err != nil {
		return 0, err
	}
	return state.FailedAccessCount, nil
}

// GetLockoutEnabled reports whether user can be locked out.
func (m *Manager) GetLockoutEnabled(ctx context.Context, user *User) (bool, error) {
	state, err := m.lockoutState(ctx, user)
	if err != nil {
		return false, err
	}
	return state.Enabled, nil
}

// SetLockoutEnabled toggles lockout for user and rotates the stamp.
func (m *Manager) SetLockoutEnabled(ctx context.Context, user *User, enabled bool) (Result, error) {
	state, err := m.lockoutState(ctx, user)
	if err != nil {
		return Result{}, err
	}
	state.Enabled = enabled
	if err := m.caps.lockout.SetLockout(ctx, user, state); err != nil {
		return Result{}, err
	}
	return m.rotateAndUpdate(ctx, user)
}

// GetLockoutEnd returns the lockout end, or nil when never locked.
func (m *Manager) GetLockoutEnd(ctx context.Context, user *User) (*time.Time, error) {
	state, err := m.lockoutState(ctx, user)
	if err != nil {
		return nil, err
	}
	return state.End, nil
}

// SetLockoutEndDate locks user until end and clears the failure counter. A
// nil or past end unlocks. Users with lockout disabled get
// UserLockoutNotEnabled.
func (m *Manager) SetLockoutEndDate(ctx context.Context, user *User, end *time.Time) (Result, error) {
	state, err := m.lockoutState(ctx, user)
	if err != nil {
		return Result{}, err
	}
	if !state.Enabled {
		return Failed(FailureUserLockoutNotEnabled), nil
	}
	if end != nil {
		e := *end
		end = &e
	}
	state = fromLockoutState(lockout.Reset(toLockoutState(state)))
	state.End = end
	if err := m.caps.lockout.SetLockout(ctx, user, state); err != nil {
		return Result{}, err
	}
	return m.updateUser(ctx, user)
}
