package goIdentity

import (
	"context"
	"errors"
	"time"
)

// Token purposes used by the Manager's built-in flows.
const (
	PurposeResetPassword     = "ResetPassword"
	PurposeEmailConfirmation = "EmailConfirmation"
	PurposeTwoFactor         = "TwoFactor"
)

// PurposeChangeEmail returns the purpose for changing to newEmail.
func PurposeChangeEmail(newEmail string) string {
	return "ChangeEmail:" + newEmail
}

// PurposeChangePhoneNumber returns the purpose for changing to phone.
func PurposeChangePhoneNumber(phone string) string {
	return "ChangePhoneNumber:" + phone
}

// TokenSource is the read-only view of user state a TokenProvider derives
// tokens from. *Manager implements it. Field getters return ErrNotSupported
// when the store lacks the capability.
type TokenSource interface {
	GetSecurityStamp(ctx context.Context, user *User) (string, error)
	GetEmail(ctx context.Context, user *User) (string, error)
	IsEmailConfirmed(ctx context.Context, user *User) (bool, error)
	GetPhoneNumber(ctx context.Context, user *User) (string, error)
	IsPhoneNumberConfirmed(ctx context.Context, user *User) (bool, error)
	GetAuthenticatorKey(ctx context.Context, user *User) (string, error)
	Now() time.Time
}

// TokenProvider generates and validates purpose-scoped user tokens.
// Validate reports malformed, expired or mismatched tokens as false with a
// nil error; errors are reserved for infrastructure failures.
type TokenProvider interface {
	CanGenerateTwoFactorToken(ctx context.Context, src TokenSource, user *User) (bool, error)
	Generate(ctx context.Context, purpose string, src TokenSource, user *User) (string, error)
	Validate(ctx context.Context, purpose, token string, src TokenSource, user *User) (bool, error)
}

// optionalStamp returns "" when the store keeps no stamps.
func optionalStamp(ctx context.Context, src TokenSource, user *User) (string, error) {
	stamp, err := src.GetSecurityStamp(ctx, user)
	if errors.Is(err, ErrNotSupported) {
		return "", nil
	}
	return stamp, err
}
