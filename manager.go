package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goIdentity/dataprotect"
	"github.com/MrEthical07/goIdentity/internal"
	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/totp"
)

// Manager is the credential manager. It validates, hashes, issues tokens and
// enforces lockout and security stamps over a pluggable store. A Manager is
// safe for concurrent use and keeps no per-user state.
type Manager struct {
	config    Config
	store     UserStore
	caps      capabilities
	hasher    password.Hasher
	totp      *totp.Generator
	protector *dataprotect.Protector
	personal  *dataprotect.PersonalDataProtector
	limiter   *limiters.TwoFactorLimiter
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	flowDeps  flows.Deps

	providersMu sync.RWMutex
	providers   map[string]TokenProvider

	closed atomic.Bool
}

// capabilities holds the optional store interfaces found at Build time.
type capabilities struct {
	lookup    UserLookupStore
	password  PasswordStore
	stamp     SecurityStampStore
	email     EmailStore
	phone     PhoneNumberStore
	lockout   LockoutStore
	counter   AccessFailedCounter
	authKey   AuthenticatorKeyStore
	twoFactor TwoFactorStore
	recovery  RecoveryCodeStore
	redeemer  RecoveryCodeRedeemer
	roles     RoleStore
	claims    ClaimStore
}

func detectCapabilities(s UserStore) capabilities {
	var c capabilities
	c.lookup, _ = s.(UserLookupStore)
	c.password, _ = s.(PasswordStore)
	c.stamp, _ = s.(SecurityStampStore)
	c.email, _ = s.(EmailStore)
	c.phone, _ = s.(PhoneNumberStore)
	c.lockout, _ = s.(LockoutStore)
	c.counter, _ = s.(AccessFailedCounter)
	c.authKey, _ = s.(AuthenticatorKeyStore)
	c.twoFactor, _ = s.(TwoFactorStore)
	c.recovery, _ = s.(RecoveryCodeStore)
	c.redeemer, _ = s.(RecoveryCodeRedeemer)
	c.roles, _ = s.(RoleStore)
	c.claims, _ = s.(ClaimStore)
	return c
}

// Close stops the audit dispatcher after draining queued events. Methods
// called after Close return ErrManagerClosed.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.closed.Store(true)
	if m.audit != nil {
		m.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

// Now returns the Manager's clock reading.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Supports* report which optional store capabilities were detected.
func (m *Manager) SupportsUserPassword() bool      { return m.caps.password != nil }
func (m *Manager) SupportsUserSecurityStamp() bool { return m.caps.stamp != nil }
func (m *Manager) SupportsUserEmail() bool         { return m.caps.email != nil }
func (m *Manager) SupportsUserPhoneNumber() bool   { return m.caps.phone != nil }
func (m *Manager) SupportsUserLockout() bool       { return m.caps.lockout != nil }
func (m *Manager) SupportsUserTwoFactor() bool     { return m.caps.twoFactor != nil }
func (m *Manager) SupportsUserRole() bool          { return m.caps.roles != nil }
func (m *Manager) SupportsUserClaim() bool         { return m.caps.claims != nil }
func (m *Manager) SupportsUserAuthenticatorKey() bool {
	return m.caps.authKey != nil
}
func (m *Manager) SupportsUserTwoFactorRecoveryCodes() bool {
	return m.caps.recovery != nil
}

// ready checks the preconditions shared by every user operation.
func (m *Manager) ready(ctx context.Context, user *User) error {
	if m == nil || m.store == nil {
		return ErrManagerNotReady
	}
	if m.closed.Load() {
		return ErrManagerClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return ErrNilUser
	}
	return nil
}

func notSupported(capability string) error {
	return fmt.Errorf("%w: store does not implement %s", ErrNotSupported, capability)
}

// updateUser normalizes, validates and persists user. A lost concurrency
// check is reported as a ConcurrencyFailure result, never as an error.
func (m *Manager) updateUser(ctx context.Context, user *User) (Result, error) {
	m.normalize(user)
	failures, err := m.validateUser(ctx, user)
	if err != nil {
		return Result{}, err
	}
	if len(failures) > 0 {
		return Failed(failures...), nil
	}
	if err := m.store.Update(ctx, user); err != nil {
		if errors.Is(err, ErrConcurrencyFailure) {
			m.metricInc(MetricConcurrencyFailure)
			m.logger.DebugContext(ctx, "concurrency failure on update", attrUserID(user.ID))
			return Failed(FailureConcurrency), nil
		}
		return Result{}, fmt.Errorf("update user: %w", err)
	}
	return Success(), nil
}

// rotateStamp assigns a fresh security stamp on the in-memory user. Stores
// without stamp support are left untouched.
func (m *Manager) rotateStamp(ctx context.Context, user *User) error {
	if m.caps.stamp == nil {
		return nil
	}
	stamp, err := internal.NewSecurityStamp()
	if err != nil {
		return err
	}
	if err := m.caps.stamp.SetSecurityStamp(ctx, user, stamp); err != nil {
		return err
	}
	m.metricInc(MetricSecurityStampRotated)
	return nil
}

// rotateAndUpdate writes a fresh stamp and persists in one Update call.
func (m *Manager) rotateAndUpdate(ctx context.Context, user *User) (Result, error) {
	if err := m.rotateStamp(ctx, user); err != nil {
		return Result{}, err
	}
	return m.updateUser(ctx, user)
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

func (m *Manager) observe(id MetricID, start time.Time) {
	if m == nil || !m.metrics.LatencyEnabled() {
		return
	}
	m.metrics.Observe(id, time.Since(start))
}
