package goIdentity

import (
	"context"
	"errors"
)

// CanSignIn applies Config.SignIn confirmation requirements.
func (m *Manager) CanSignIn(ctx context.Context, user *User) (bool, error) {
	if err := m.ready(ctx, user); err != nil {
		return false, err
	}
	if m.config.SignIn.RequireConfirmedEmail {
		ok, err := m.IsEmailConfirmed(ctx, user)
		if err != nil {
			return false, err
		}
		if !ok {
			m.logger.DebugContext(ctx, "sign-in blocked: email not confirmed", attrUserID(user.ID))
			return false, nil
		}
	}
	if m.config.SignIn.RequireConfirmedPhoneNumber {
		ok, err := m.IsPhoneNumberConfirmed(ctx, user)
		if err != nil {
			return false, err
		}
		if !ok {
			m.logger.DebugContext(ctx, "sign-in blocked: phone number not confirmed", attrUserID(user.ID))
			return false, nil
		}
	}
	return true, nil
}

// preSignInCheck returns a terminal result when user may not attempt sign-in.
func (m *Manager) preSignInCheck(ctx context.Context, user *User) (*SignInResult, error) {
	ok, err := m.CanSignIn(ctx, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.emitAudit(ctx, auditEventSignInNotAllowed, false, user.ID, nil, nil)
		return &SignInNotAllowed, nil
	}
	if m.caps.lockout != nil {
		locked, err := m.IsLockedOut(ctx, user)
		if err != nil {
			return nil, err
		}
		if locked {
			m.emitAudit(ctx, auditEventSignInFailure, false, user.ID, nil, func() map[string]string {
				return map[string]string{"reason": "locked_out"}
			})
			return &SignInLockedOut, nil
		}
	}
	return nil, nil
}

// CheckPasswordSignIn verifies pw for a sign-in attempt. With
// lockoutOnFailure a wrong password counts toward lockout. A correct
// password for a user with two-factor enabled yields RequiresTwoFactor.
func (m *Manager) CheckPasswordSignIn(ctx context.Context, user *User, pw string, lockoutOnFailure bool) (SignInResult, error) {
	if pre, err := m.preSignInCheck(ctx, user); err != nil || pre != nil {
		return derefSignIn(pre), err
	}

	ok, err := m.CheckPassword(ctx, user, pw)
	if err != nil {
		return SignInFailed, err
	}
	if ok {
		required, err := m.twoFactorRequired(ctx, user)
		if err != nil {
			return SignInFailed, err
		}
		if required {
			m.emitAudit(ctx, auditEventSignInTwoFactorRequired, true, user.ID, nil, nil)
			return SignInTwoFactorRequired, nil
		}
		return m.signInSucceeded(ctx, user)
	}
	return m.signInFailed(ctx, user, lockoutOnFailure)
}

// TwoFactorSignIn completes a sign-in with a second-factor code. Wrong codes
// count toward lockout.
func (m *Manager) TwoFactorSignIn(ctx context.Context, user *User, provider, code string) (SignInResult, error) {
	if pre, err := m.preSignInCheck(ctx, user); err != nil || pre != nil {
		return derefSignIn(pre), err
	}

	ok, err := m.VerifyTwoFactorToken(ctx, user, provider, code)
	if err != nil {
		return SignInFailed, err
	}
	if ok {
		return m.signInSucceeded(ctx, user)
	}
	return m.signInFailed(ctx, user, true)
}

// RecoveryCodeSignIn completes a sign-in by redeeming a recovery code.
func (m *Manager) RecoveryCodeSignIn(ctx context.Context, user *User, code string) (SignInResult, error) {
	if pre, err := m.preSignInCheck(ctx, user); err != nil || pre != nil {
		return derefSignIn(pre), err
	}

	res, err := m.RedeemTwoFactorRecoveryCode(ctx, user, code)
	if err != nil {
		return SignInFailed, err
	}
	if res.Has(CodeTwoFactorRateLimited) {
		return SignInFailed, FailureTwoFactorRateLimited
	}
	if res.Succeeded {
		return m.signInSucceeded(ctx, user)
	}
	return m.signInFailed(ctx, user, true)
}

func (m *Manager) twoFactorRequired(ctx context.Context, user *User) (bool, error) {
	if m.caps.twoFactor == nil {
		return false, nil
	}
	enabled, err := m.caps.twoFactor.GetTwoFactorEnabled(ctx, user)
	if err != nil || !enabled {
		return false, err
	}
	providers, err := m.GetValidTwoFactorProviders(ctx, user)
	if err != nil {
		return false, err
	}
	return len(providers) > 0, nil
}

func (m *Manager) signInSucceeded(ctx context.Context, user *User) (SignInResult, error) {
	if m.caps.lockout != nil {
		res, err := m.ResetAccessFailedCount(ctx, user)
		if err != nil {
			return SignInFailed, err
		}
		if !res.Succeeded {
			m.logger.WarnContext(ctx, "access failed count not reset", attrUserID(user.ID), attrError(res.Err()))
		}
	}
	m.metricInc(MetricSignInSuccess)
	m.emitAudit(ctx, auditEventSignInSuccess, true, user.ID, nil, nil)
	return SignInSuccess, nil
}

func (m *Manager) signInFailed(ctx context.Context, user *User, countFailure bool) (SignInResult, error) {
	m.metricInc(MetricSignInFailure)
	if countFailure && m.caps.lockout != nil {
		res, err := m.AccessFailed(ctx, user)
		if err != nil {
			return SignInFailed, err
		}
		if !res.Succeeded && !errors.Is(res.Err(), FailureConcurrency) {
			return SignInFailed, res.Err()
		}
		locked, err := m.IsLockedOut(ctx, user)
		if err != nil {
			return SignInFailed, err
		}
		if locked {
			m.emitAudit(ctx, auditEventSignInFailure, false, user.ID, nil, func() map[string]string {
				return map[string]string{"reason": "locked_out"}
			})
			return SignInLockedOut, nil
		}
	}
	m.emitAudit(ctx, auditEventSignInFailure, false, user.ID, nil, nil)
	return SignInFailed, nil
}

func derefSignIn(r *SignInResult) SignInResult {
	if r == nil {
		return SignInFailed
	}
	return *r
}
