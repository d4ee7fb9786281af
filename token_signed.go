package goIdentity

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/jwt"
)

// SignedTokenProvider issues JWS tokens. Purpose and stamp are bound as
// digests and recomputed from live state on validation.
type SignedTokenProvider struct {
	codec *jwt.Manager
}

// NewSignedTokenProvider wraps a configured codec.
func NewSignedTokenProvider(codec *jwt.Manager) (*SignedTokenProvider, error) {
	if codec == nil {
		return nil, fmt.Errorf("%w: nil codec", ErrInvalidArgument)
	}
	return &SignedTokenProvider{codec: codec}, nil
}

func (p *SignedTokenProvider) CanGenerateTwoFactorToken(context.Context, TokenSource, *User) (bool, error) {
	return false, nil
}

func (p *SignedTokenProvider) Generate(ctx context.Context, purpose string, src TokenSource, user *User) (string, error) {
	if user == nil {
		return "", ErrNilUser
	}
	stamp, err := optionalStamp(ctx, src, user)
	if err != nil {
		return "", err
	}
	return p.codec.Create(user.ID, internal.DigestHex(purpose), internal.DigestHex(stamp), src.Now())
}

func (p *SignedTokenProvider) Validate(ctx context.Context, purpose, token string, src TokenSource, user *User) (bool, error) {
	if user == nil {
		return false, ErrNilUser
	}
	claims, err := p.codec.Parse(token, src.Now())
	if err != nil {
		return false, nil
	}
	if claims.Subject != user.ID {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(claims.Purpose), []byte(internal.DigestHex(purpose))) != 1 {
		return false, nil
	}
	stamp, err := optionalStamp(ctx, src, user)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(claims.Stamp), []byte(internal.DigestHex(stamp))) == 1, nil
}
