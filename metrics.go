package goIdentity

import (
	internalmetrics "github.com/MrEthical07/goIdentity/internal/metrics"
)

// MetricID identifies a counter or histogram in the in-process metrics
// system.
type MetricID = internalmetrics.MetricID

// Metrics is the lock-free counter set owned by a Manager.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of a Manager's metrics.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	// User lifecycle.
	MetricUserCreated        = internalmetrics.MetricUserCreated
	MetricUserCreateRejected = internalmetrics.MetricUserCreateRejected
	MetricConcurrencyFailure = internalmetrics.MetricConcurrencyFailure

	// Passwords.
	MetricPasswordCheckSuccess   = internalmetrics.MetricPasswordCheckSuccess
	MetricPasswordCheckFailure   = internalmetrics.MetricPasswordCheckFailure
	MetricPasswordRehashed       = internalmetrics.MetricPasswordRehashed
	MetricPasswordChanged        = internalmetrics.MetricPasswordChanged
	MetricPasswordReset          = internalmetrics.MetricPasswordReset
	MetricPasswordPolicyRejected = internalmetrics.MetricPasswordPolicyRejected

	// Tokens and two-factor.
	MetricTokenGenerated           = internalmetrics.MetricTokenGenerated
	MetricTokenValidated           = internalmetrics.MetricTokenValidated
	MetricTokenRejected            = internalmetrics.MetricTokenRejected
	MetricTwoFactorSuccess         = internalmetrics.MetricTwoFactorSuccess
	MetricTwoFactorFailure         = internalmetrics.MetricTwoFactorFailure
	MetricTwoFactorRateLimited     = internalmetrics.MetricTwoFactorRateLimited
	MetricRecoveryCodeRedeemed     = internalmetrics.MetricRecoveryCodeRedeemed
	MetricRecoveryCodeFailed       = internalmetrics.MetricRecoveryCodeFailed
	MetricRecoveryCodesRegenerated = internalmetrics.MetricRecoveryCodesRegenerated

	// Lockout, stamps and sign-in.
	MetricAccessFailed           = internalmetrics.MetricAccessFailed
	MetricLockedOut              = internalmetrics.MetricLockedOut
	MetricSecurityStampRotated   = internalmetrics.MetricSecurityStampRotated
	MetricStampValidationFailure = internalmetrics.MetricStampValidationFailure
	MetricSignInSuccess          = internalmetrics.MetricSignInSuccess
	MetricSignInFailure          = internalmetrics.MetricSignInFailure

	// MetricPasswordHashLatency is the only histogram: time spent in
	// Hasher.Hash and Hasher.Verify.
	MetricPasswordHashLatency = internalmetrics.MetricPasswordHashLatency
)

// NewMetrics returns a counter set configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
