package goIdentity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/totp"
)

// AuthenticatorTokenProvider validates codes from an authenticator app
// against the user's shared Base32 key. The server never generates codes.
type AuthenticatorTokenProvider struct {
	gen *totp.Generator
}

// NewAuthenticatorTokenProvider returns the provider registered as
// "Authenticator".
func NewAuthenticatorTokenProvider(gen *totp.Generator) (*AuthenticatorTokenProvider, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: nil totp generator", ErrInvalidArgument)
	}
	return &AuthenticatorTokenProvider{gen: gen}, nil
}

func (p *AuthenticatorTokenProvider) CanGenerateTwoFactorToken(ctx context.Context, src TokenSource, user *User) (bool, error) {
	if user == nil {
		return false, ErrNilUser
	}
	key, err := src.GetAuthenticatorKey(ctx, user)
	if errors.Is(err, ErrNotSupported) || errors.Is(err, ErrPersonalDataUnreadable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return key != "", nil
}

// Generate returns "" because codes come from the user's device.
func (p *AuthenticatorTokenProvider) Generate(_ context.Context, _ string, _ TokenSource, user *User) (string, error) {
	if user == nil {
		return "", ErrNilUser
	}
	return "", nil
}

func (p *AuthenticatorTokenProvider) Validate(ctx context.Context, _ string, token string, src TokenSource, user *User) (bool, error) {
	if user == nil {
		return false, ErrNilUser
	}
	encoded, err := src.GetAuthenticatorKey(ctx, user)
	if errors.Is(err, ErrNotSupported) || errors.Is(err, ErrPersonalDataUnreadable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if encoded == "" {
		return false, nil
	}
	key, err := totp.DecodeBase32(encoded)
	if err != nil {
		return false, nil
	}
	return p.gen.Validate(token, key, "", src.Now()), nil
}
