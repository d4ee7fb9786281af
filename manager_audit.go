package goIdentity

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/limiters"
)

const (
	auditEventUserCreated             = "user_created"
	auditEventUserDeleted             = "user_deleted"
	auditEventPasswordChanged         = "password_changed"
	auditEventPasswordAdded           = "password_added"
	auditEventPasswordRemoved         = "password_removed"
	auditEventPasswordReset           = "password_reset"
	auditEventPasswordRehashed        = "password_rehashed"
	auditEventEmailConfirmed          = "email_confirmed"
	auditEventEmailChanged            = "email_changed"
	auditEventPhoneChanged            = "phone_number_changed"
	auditEventTokenRejected           = "token_rejected"
	auditEventTwoFactorEnabled        = "two_factor_enabled"
	auditEventTwoFactorDisabled       = "two_factor_disabled"
	auditEventTwoFactorSuccess        = "two_factor_success"
	auditEventTwoFactorFailure        = "two_factor_failure"
	auditEventTwoFactorRateLimited    = "two_factor_rate_limited"
	auditEventAuthenticatorKeyReset   = "authenticator_key_reset"
	auditEventRecoveryCodesGenerated  = "recovery_codes_generated"
	auditEventRecoveryCodeRedeemed    = "recovery_code_redeemed"
	auditEventRecoveryCodeFailed      = "recovery_code_failed"
	auditEventAccessFailed            = "access_failed"
	auditEventLockedOut               = "locked_out"
	auditEventLockoutReset            = "lockout_reset"
	auditEventSecurityStampRotated    = "security_stamp_rotated"
	auditEventStampValidationFailed   = "security_stamp_validation_failed"
	auditEventSignInSuccess           = "sign_in_success"
	auditEventSignInFailure           = "sign_in_failure"
	auditEventSignInNotAllowed        = "sign_in_not_allowed"
	auditEventSignInTwoFactorRequired = "sign_in_two_factor_required"
)

// criticalAuditEvent reports events that record a credential change or a
// lockout. The dispatcher never drops them, even with Audit.DropIfFull.
func criticalAuditEvent(eventType string) bool {
	switch eventType {
	case auditEventPasswordChanged, auditEventPasswordAdded, auditEventPasswordRemoved,
		auditEventPasswordReset, auditEventEmailChanged, auditEventPhoneChanged,
		auditEventTwoFactorDisabled, auditEventAuthenticatorKeyReset,
		auditEventRecoveryCodesGenerated, auditEventLockedOut, auditEventUserDeleted:
		return true
	}
	return false
}

// AuditErrorCode is the stable, secret-free error label carried by audit
// events.
type AuditErrorCode string

const (
	auditErrNilUser          AuditErrorCode = "nil_user"
	auditErrInvalidArgument  AuditErrorCode = "invalid_argument"
	auditErrNotSupported     AuditErrorCode = "not_supported"
	auditErrUserNotFound     AuditErrorCode = "user_not_found"
	auditErrConcurrency      AuditErrorCode = "concurrency_failure"
	auditErrRateLimited      AuditErrorCode = "rate_limited"
	auditErrUnavailable      AuditErrorCode = "backend_unavailable"
	auditErrPasswordMismatch AuditErrorCode = "password_mismatch"
	auditErrInvalidToken     AuditErrorCode = "invalid_token"
	auditErrCanceled         AuditErrorCode = "canceled"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (m *Manager) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: m.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Success:   success,
		Metadata:  metadata,
	}
	if metadata != nil {
		event.Provider = metadata["provider"]
		event.Purpose = metadata["purpose"]
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	m.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNilUser):
		return auditErrNilUser
	case errors.Is(err, ErrInvalidArgument):
		return auditErrInvalidArgument
	case errors.Is(err, ErrNotSupported):
		return auditErrNotSupported
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrConcurrencyFailure), errors.Is(err, FailureConcurrency):
		return auditErrConcurrency
	case errors.Is(err, FailureTwoFactorRateLimited), errors.Is(err, limiters.ErrTwoFactorRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTwoFactorUnavailable), errors.Is(err, limiters.ErrTwoFactorUnavailable):
		return auditErrUnavailable
	case errors.Is(err, FailurePasswordMismatch):
		return auditErrPasswordMismatch
	case errors.Is(err, FailureInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	default:
		return auditErrInternal
	}
}

// buildFlowDeps wires the shared, user-independent parts of every flow.
func (m *Manager) buildFlowDeps() flows.Deps {
	metricInc := func(id int) { m.metricInc(MetricID(id)) }
	emit := func(ctx context.Context, event string, success bool, userID string, err error, meta func() map[string]string) {
		m.emitAudit(ctx, event, success, userID, err, meta)
	}
	isRateLimited := func(err error) bool { return errors.Is(err, limiters.ErrTwoFactorRateLimited) }

	var check, record, reset func(context.Context, string) error
	if m.limiter != nil {
		check = m.limiter.Check
		record = m.limiter.RecordFailure
		reset = m.limiter.Reset
	}

	return flows.Deps{
		RecoveryCodes: flows.RecoveryCodeDeps{
			Length:               m.config.RecoveryCodes.Length,
			CheckLimiter:         check,
			RecordLimiterFailure: record,
			ResetLimiter:         reset,
			IsRateLimited:        isRateLimited,
			MetricInc:            metricInc,
			EmitAudit:            emit,
			Metrics: flows.RecoveryCodeMetrics{
				Redeemed:    int(MetricRecoveryCodeRedeemed),
				Failed:      int(MetricRecoveryCodeFailed),
				Regenerated: int(MetricRecoveryCodesRegenerated),
			},
			Events: flows.RecoveryCodeEvents{
				Generated: auditEventRecoveryCodesGenerated,
				Redeemed:  auditEventRecoveryCodeRedeemed,
				Failed:    auditEventRecoveryCodeFailed,
			},
			Errors: flows.RecoveryCodeErrors{
				NotReady:        notSupported("RecoveryCodeStore"),
				InvalidArgument: ErrInvalidArgument,
				RateLimited:     FailureTwoFactorRateLimited,
				Unavailable:     ErrTwoFactorUnavailable,
			},
		},
		TwoFactor: flows.TwoFactorDeps{
			CheckLimiter:         check,
			RecordLimiterFailure: record,
			ResetLimiter:         reset,
			IsRateLimited:        isRateLimited,
			MetricInc:            metricInc,
			EmitAudit:            emit,
			Metrics: flows.TwoFactorMetrics{
				Success:     int(MetricTwoFactorSuccess),
				Failure:     int(MetricTwoFactorFailure),
				RateLimited: int(MetricTwoFactorRateLimited),
			},
			Events: flows.TwoFactorEvents{
				Success:     auditEventTwoFactorSuccess,
				Failure:     auditEventTwoFactorFailure,
				RateLimited: auditEventTwoFactorRateLimited,
			},
			Errors: flows.TwoFactorErrors{
				NotReady:    ErrManagerNotReady,
				RateLimited: FailureTwoFactorRateLimited,
				Unavailable: ErrTwoFactorUnavailable,
			},
		},
	}
}
