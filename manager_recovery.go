package goIdentity

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

func (m *Manager) recoveryDeps(user *User) flows.RecoveryCodeDeps {
	deps := m.flowDeps.RecoveryCodes
	if m.caps.recovery != nil {
		deps.GetDigests = func(ctx context.Context) ([]string, error) {
			return m.caps.recovery.GetRecoveryCodes(ctx, user)
		}
		deps.ReplaceDigests = func(ctx context.Context, digests []string) error {
			return m.caps.recovery.ReplaceRecoveryCodes(ctx, user, digests)
		}
	}
	if m.caps.redeemer != nil {
		deps.RedeemDigest = func(ctx context.Context, digest string) (bool, error) {
			return m.caps.redeemer.RedeemRecoveryCode(ctx, user, digest)
		}
	}
	return deps
}

// MaxRecoveryCodes is the most codes one GenerateNewTwoFactorRecoveryCodes
// call may create.
const MaxRecoveryCodes = flows.MaxRecoveryCodes

// GenerateNewTwoFactorRecoveryCodes replaces every recovery code of user with
// count fresh ones. Zero selects Config.RecoveryCodes.Count and counts above
// MaxRecoveryCodes return ErrInvalidArgument. Only digests are stored; the
// returned codes cannot be read back.
func (m *Manager) GenerateNewTwoFactorRecoveryCodes(ctx context.Context, user *User, count int) ([]string, error) {
	if err := m.ready(ctx, user); err != nil {
		return nil, err
	}
	if m.caps.recovery == nil {
		return nil, notSupported("RecoveryCodeStore")
	}
	if count <= 0 {
		count = m.config.RecoveryCodes.Count
	}
	return flows.RunGenerateRecoveryCodes(ctx, user.ID, count, m.recoveryDeps(user))
}

// RedeemTwoFactorRecoveryCode consumes code. Each code works once; input is
// matched case-insensitively with dashes and spaces ignored.
func (m *Manager) RedeemTwoFactorRecoveryCode(ctx context.Context, user *User, code string) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.recovery == nil {
		return Result{}, notSupported("RecoveryCodeStore")
	}

	ok, err := flows.RunRedeemRecoveryCode(ctx, user.ID, code, m.recoveryDeps(user))
	if err != nil {
		if errors.Is(err, FailureTwoFactorRateLimited) {
			return Failed(FailureTwoFactorRateLimited), nil
		}
		return Result{}, err
	}
	if !ok {
		return Failed(FailureInvalidToken), nil
	}
	m.logger.InfoContext(ctx, "recovery code redeemed", attrUserID(user.ID))
	return Success(), nil
}

// CountRecoveryCodes returns how many unused recovery codes user has.
func (m *Manager) CountRecoveryCodes(ctx context.Context, user *User) (int, error) {
	if err := m.ready(ctx, user); err != nil {
		return 0, err
	}
	if m.caps.recovery == nil {
		return 0, notSupported("RecoveryCodeStore")
	}
	digests, err := m.caps.recovery.GetRecoveryCodes(ctx, user)
	if err != nil {
		return 0, err
	}
	return len(digests), nil
}
