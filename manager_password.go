package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/password"
)

// HasPassword reports whether user has a password hash.
func (m *Manager) HasPassword(ctx context.Context, user *User) (bool, error) {
	if err := m.ready(ctx, user); err != nil {
		return false, err
	}
	if m.caps.password == nil {
		return false, notSupported("PasswordStore")
	}
	hash, err := m.caps.password.GetPasswordHash(ctx, user)
	if err != nil {
		return false, err
	}
	return hash != "", nil
}

// CheckPassword verifies pw against the stored hash. Legacy or weaker hashes
// are replaced with a current one when Config.Password.RehashOnVerify is set.
// The rehash does not rotate the security stamp.
func (m *Manager) CheckPassword(ctx context.Context, user *User, pw string) (bool, error) {
	if err := m.ready(ctx, user); err != nil {
		return false, err
	}
	if m.caps.password == nil {
		return false, notSupported("PasswordStore")
	}

	result, err := m.verifyPassword(ctx, user, pw)
	if err != nil {
		return false, err
	}
	if result == password.Failed {
		m.metricInc(MetricPasswordCheckFailure)
		m.logger.DebugContext(ctx, "invalid password", attrUserID(user.ID))
		return false, nil
	}
	m.metricInc(MetricPasswordCheckSuccess)

	if result == password.SuccessRehashNeeded && m.config.Password.RehashOnVerify {
		m.rehash(ctx, user, pw)
	}
	return true, nil
}

func (m *Manager) verifyPassword(ctx context.Context, user *User, pw string) (password.VerificationResult, error) {
	hash, err := m.caps.password.GetPasswordHash(ctx, user)
	if err != nil {
		return password.Failed, err
	}
	if hash == "" {
		return password.Failed, nil
	}

	start := time.Now()
	result := m.hasher.Verify(hash, pw)
	m.observe(MetricPasswordHashLatency, start)

	if err := ctx.Err(); err != nil {
		return password.Failed, err
	}
	return result, nil
}

// rehash is best effort: the caller already authenticated, so a failed
// upgrade only leaves the old hash in place.
func (m *Manager) rehash(ctx context.Context, user *User, pw string) {
	hash, err := m.hashPassword(ctx, pw)
	if err == nil {
		err = m.caps.password.SetPasswordHash(ctx, user, hash)
	}
	var res Result
	if err == nil {
		res, err = m.updateUser(ctx, user)
	}
	if err != nil || !res.Succeeded {
		m.logger.WarnContext(ctx, "password rehash not persisted", attrUserID(user.ID), attrError(err))
		return
	}
	m.metricInc(MetricPasswordRehashed)
	m.emitAudit(ctx, auditEventPasswordRehashed, true, user.ID, nil, nil)
}

// ChangePassword replaces the password after verifying current. A wrong
// current password yields PasswordMismatch; policy violations are all
// reported together.
func (m *Manager) ChangePassword(ctx context.Context, user *User, current, next string) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.password == nil {
		return Result{}, notSupported("PasswordStore")
	}

	verified, err := m.verifyPassword(ctx, user, current)
	if err != nil {
		return Result{}, err
	}
	if verified == password.Failed {
		m.metricInc(MetricPasswordCheckFailure)
		m.emitAudit(ctx, auditEventPasswordChanged, false, user.ID, FailurePasswordMismatch, nil)
		return Failed(FailurePasswordMismatch), nil
	}

	res, err := m.setPassword(ctx, user, next, true)
	if err != nil || !res.Succeeded {
		return res, err
	}
	res, err = m.rotateAndUpdate(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}

	m.metricInc(MetricPasswordChanged)
	m.emitAudit(ctx, auditEventPasswordChanged, true, user.ID, nil, nil)
	m.logger.InfoContext(ctx, "password changed", attrUserID(user.ID))
	return Success(), nil
}

// AddPassword sets a password on a user that has none.
func (m *Manager) AddPassword(ctx context.Context, user *User, pw string) (Result, error) {
	has, err := m.HasPassword(ctx, user)
	if err != nil {
		return Result{}, err
	}
	if has {
		m.logger.DebugContext(ctx, "user already has a password", attrUserID(user.ID))
		return Failed(FailureUserAlreadyHasPassword), nil
	}

	res, err := m.setPassword(ctx, user, pw, true)
	if err != nil || !res.Succeeded {
		return res, err
	}
	res, err = m.rotateAndUpdate(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}
	m.emitAudit(ctx, auditEventPasswordAdded, true, user.ID, nil, nil)
	return Success(), nil
}

// RemovePassword clears the password hash.
func (m *Manager) RemovePassword(ctx context.Context, user *User) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.password == nil {
		return Result{}, notSupported("PasswordStore")
	}
	if err := m.caps.password.SetPasswordHash(ctx, user, ""); err != nil {
		return Result{}, err
	}
	res, err := m.rotateAndUpdate(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}
	m.emitAudit(ctx, auditEventPasswordRemoved, true, user.ID, nil, nil)
	return Success(), nil
}

// ValidatePassword applies the password policy and reports every violated
// rule.
func (m *Manager) ValidatePassword(pw string) Result {
	violations := m.config.PasswordPolicy.Validate(pw)
	if len(violations) == 0 {
		return Success()
	}
	failures := make([]Failure, 0, len(violations))
	for _, v := range violations {
		failures = append(failures, failureFromViolation(v))
	}
	return Failed(failures...)
}

func failureFromViolation(v password.Violation) Failure {
	switch v.Code {
	case password.CodeTooShort:
		return failurePasswordTooShort(v.Required)
	case password.CodeRequiresUniqueChars:
		return failurePasswordRequiresUniqueChars(v.Required)
	case password.CodeRequiresNonAlphanumeric:
		return FailurePasswordRequiresNonAlpha
	case password.CodeRequiresDigit:
		return FailurePasswordRequiresDigit
	case password.CodeRequiresLower:
		return FailurePasswordRequiresLower
	case password.CodeRequiresUpper:
		return FailurePasswordRequiresUpper
	default:
		return FailureDefault
	}
}

// GeneratePasswordResetToken issues a token for ResetPassword through the
// configured provider.
func (m *Manager) GeneratePasswordResetToken(ctx context.Context, user *User) (string, error) {
	return m.GenerateUserToken(ctx, user, m.config.Tokens.PasswordResetTokenProvider, PurposeResetPassword)
}

// ResetPassword sets a new password when token is a valid reset token.
func (m *Manager) ResetPassword(ctx context.Context, user *User, token, next string) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.password == nil {
		return Result{}, notSupported("PasswordStore")
	}

	ok, err := m.VerifyUserToken(ctx, user, m.config.Tokens.PasswordResetTokenProvider, PurposeResetPassword, token)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		m.emitAudit(ctx, auditEventPasswordReset, false, user.ID, FailureInvalidToken, nil)
		return Failed(FailureInvalidToken), nil
	}

	res, err := m.setPassword(ctx, user, next, true)
	if err != nil || !res.Succeeded {
		return res, err
	}
	res, err = m.rotateAndUpdate(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}

	m.metricInc(MetricPasswordReset)
	m.emitAudit(ctx, auditEventPasswordReset, true, user.ID, nil, nil)
	m.logger.InfoContext(ctx, "password reset", attrUserID(user.ID))
	return Success(), nil
}

// setPassword hashes pw onto the in-memory user without persisting.
func (m *Manager) setPassword(ctx context.Context, user *User, pw string, validate bool) (Result, error) {
	if validate {
		if res := m.ValidatePassword(pw); !res.Succeeded {
			m.metricInc(MetricPasswordPolicyRejected)
			return res, nil
		}
	}
	hash, err := m.hashPassword(ctx, pw)
	if err != nil {
		return Result{}, err
	}
	if err := m.caps.password.SetPasswordHash(ctx, user, hash); err != nil {
		return Result{}, err
	}
	return Success(), nil
}

func (m *Manager) hashPassword(ctx context.Context, pw string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()
	hash, err := m.hasher.Hash(pw)
	m.observe(MetricPasswordHashLatency, start)
	if err != nil {
		if errors.Is(err, password.ErrEmptyPassword) || errors.Is(err, password.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return hash, nil
}
