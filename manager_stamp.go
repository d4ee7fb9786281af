package goIdentity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

// GetSecurityStamp returns the user's current security stamp.
func (m *Manager) GetSecurityStamp(ctx context.Context, user *User) (string, error) {
	if err := m.ready(ctx, user); err != nil {
		return "", err
	}
	if m.caps.stamp == nil {
		return "", notSupported("SecurityStampStore")
	}
	return m.caps.stamp.GetSecurityStamp(ctx, user)
}

// UpdateSecurityStamp rotates the stamp, invalidating every outstanding
// token and principal of user.
func (m *Manager) UpdateSecurityStamp(ctx context.Context, user *User) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.stamp == nil {
		return Result{}, notSupported("SecurityStampStore")
	}
	res, err := m.rotateAndUpdate(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}
	m.emitAudit(ctx, auditEventSecurityStampRotated, true, user.ID, nil, nil)
	return Success(), nil
}

// CreatePrincipal snapshots user's identity claims: ID, name, email and
// stamp where supported, roles, and stored claims.
func (m *Manager) CreatePrincipal(ctx context.Context, user *User) (*Principal, error) {
	if err := m.ready(ctx, user); err != nil {
		return nil, err
	}

	claims := []Claim{
		{Type: ClaimTypeUserID, Value: user.ID},
		{Type: ClaimTypeUserName, Value: user.UserName},
	}
	if m.caps.email != nil {
		email, err := m.caps.email.GetEmail(ctx, user)
		if err != nil {
			return nil, err
		}
		if email != "" {
			claims = append(claims, Claim{Type: ClaimTypeEmail, Value: email})
		}
	}
	if m.caps.stamp != nil {
		stamp, err := m.caps.stamp.GetSecurityStamp(ctx, user)
		if err != nil {
			return nil, err
		}
		claims = append(claims, Claim{Type: ClaimTypeSecurityStamp, Value: stamp})
	}
	if m.caps.roles != nil {
		roles, err := m.caps.roles.GetRoles(ctx, user)
		if err != nil {
			return nil, err
		}
		for _, r := range roles {
			claims = append(claims, Claim{Type: ClaimTypeRole, Value: r})
		}
	}
	if m.caps.claims != nil {
		extra, err := m.caps.claims.GetClaims(ctx, user)
		if err != nil {
			return nil, err
		}
		claims = append(claims, extra...)
	}

	return &Principal{Claims: claims, IssuedAt: m.now()}, nil
}

// ShouldValidateSecurityStamp reports whether principal is due for
// revalidation under Config.Stamp.ValidationInterval.
func (m *Manager) ShouldValidateSecurityStamp(principal *Principal) bool {
	if principal == nil {
		return true
	}
	interval := m.config.Stamp.ValidationInterval
	if interval <= 0 {
		return true
	}
	return !m.now().Before(principal.IssuedAt.Add(interval))
}

// ValidateSecurityStamp reloads the principal's user and returns it when the
// principal's stamp claim still matches. A nil user with a nil error means
// the principal must be rejected.
func (m *Manager) ValidateSecurityStamp(ctx context.Context, principal *Principal) (*User, error) {
	if err := m.ready(ctx, &User{}); err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, fmt.Errorf("%w: nil principal", ErrInvalidArgument)
	}
	userID := principal.UserID()
	if userID == "" {
		return nil, nil
	}

	user, err := m.store.FindByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		m.stampRejected(ctx, userID, "user_missing")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	claim, hasClaim := principal.FindFirst(ClaimTypeSecurityStamp)
	if m.caps.stamp == nil {
		if hasClaim {
			m.stampRejected(ctx, userID, "unexpected_stamp")
			return nil, nil
		}
		return user, nil
	}
	current, err := m.caps.stamp.GetSecurityStamp(ctx, user)
	if err != nil {
		return nil, err
	}
	if !hasClaim || subtle.ConstantTimeCompare([]byte(claim), []byte(current)) != 1 {
		m.stampRejected(ctx, userID, "stamp_mismatch")
		return nil, nil
	}
	return user, nil
}

func (m *Manager) stampRejected(ctx context.Context, userID, reason string) {
	m.metricInc(MetricStampValidationFailure)
	m.emitAudit(ctx, auditEventStampValidationFailed, false, userID, nil, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	m.logger.DebugContext(ctx, "security stamp validation failed", attrUserID(userID))
}

// RefreshPrincipal revalidates principal and reissues it from current user
// state. A nil principal with a nil error means the old one is stale.
func (m *Manager) RefreshPrincipal(ctx context.Context, principal *Principal) (*Principal, error) {
	user, err := m.ValidateSecurityStamp(ctx, principal)
	if err != nil || user == nil {
		return nil, err
	}
	return m.CreatePrincipal(ctx, user)
}
