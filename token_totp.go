package goIdentity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/totp"
)

// totpChannel selects which contact field a stamp-based TOTP provider binds.
type totpChannel int

const (
	channelEmail totpChannel = iota
	channelPhone
)

// TotpSecurityStampTokenProvider delivers short numeric codes keyed by the
// user's security stamp. Codes are scoped to the purpose, the user and the
// contact address they were sent to.
type TotpSecurityStampTokenProvider struct {
	gen     *totp.Generator
	channel totpChannel
}

// NewEmailTokenProvider returns the provider registered as "Email".
func NewEmailTokenProvider(gen *totp.Generator) (*TotpSecurityStampTokenProvider, error) {
	return newTotpStampProvider(gen, channelEmail)
}

// NewPhoneNumberTokenProvider returns the provider registered as "Phone".
func NewPhoneNumberTokenProvider(gen *totp.Generator) (*TotpSecurityStampTokenProvider, error) {
	return newTotpStampProvider(gen, channelPhone)
}

func newTotpStampProvider(gen *totp.Generator, ch totpChannel) (*TotpSecurityStampTokenProvider, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: nil totp generator", ErrInvalidArgument)
	}
	return &TotpSecurityStampTokenProvider{gen: gen, channel: ch}, nil
}

// CanGenerateTwoFactorToken requires a confirmed address on the channel.
func (p *TotpSecurityStampTokenProvider) CanGenerateTwoFactorToken(ctx context.Context, src TokenSource, user *User) (bool, error) {
	if user == nil {
		return false, ErrNilUser
	}
	var (
		addr      string
		confirmed bool
		err       error
	)
	switch p.channel {
	case channelEmail:
		if addr, err = src.GetEmail(ctx, user); err == nil {
			confirmed, err = src.IsEmailConfirmed(ctx, user)
		}
	default:
		if addr, err = src.GetPhoneNumber(ctx, user); err == nil {
			confirmed, err = src.IsPhoneNumberConfirmed(ctx, user)
		}
	}
	if errors.Is(err, ErrNotSupported) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return addr != "" && confirmed, nil
}

func (p *TotpSecurityStampTokenProvider) Generate(ctx context.Context, purpose string, src TokenSource, user *User) (string, error) {
	key, modifier, err := p.derive(ctx, purpose, src, user)
	if err != nil {
		return "", err
	}
	return p.gen.Generate(key, modifier, src.Now())
}

func (p *TotpSecurityStampTokenProvider) Validate(ctx context.Context, purpose, token string, src TokenSource, user *User) (bool, error) {
	key, modifier, err := p.derive(ctx, purpose, src, user)
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) {
			return false, nil
		}
		return false, err
	}
	return p.gen.Validate(token, key, modifier, src.Now()), nil
}

// derive returns the stamp bytes and the modifier
// "Totp:<purpose>:<userID>[:<address>]".
func (p *TotpSecurityStampTokenProvider) derive(ctx context.Context, purpose string, src TokenSource, user *User) ([]byte, string, error) {
	if user == nil {
		return nil, "", ErrNilUser
	}
	stamp, err := src.GetSecurityStamp(ctx, user)
	if err != nil {
		return nil, "", err
	}
	if stamp == "" {
		return nil, "", fmt.Errorf("%w: user has no security stamp", ErrInvalidArgument)
	}

	var addr string
	switch p.channel {
	case channelEmail:
		addr, err = src.GetEmail(ctx, user)
	default:
		addr, err = src.GetPhoneNumber(ctx, user)
	}
	if err != nil && !errors.Is(err, ErrNotSupported) {
		return nil, "", err
	}

	modifier := "Totp:" + purpose + ":" + user.ID
	if addr != "" {
		modifier += ":" + addr
	}
	return []byte(stamp), modifier, nil
}
