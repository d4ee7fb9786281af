package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const authenticatorQRSize = 256

// GetValidTwoFactorProviders returns, sorted by name, every registered
// provider that can currently issue a second-factor code for user.
func (m *Manager) GetValidTwoFactorProviders(ctx context.Context, user *User) ([]string, error) {
	if err := m.ready(ctx, user); err != nil {
		return nil, err
	}

	m.providersMu.RLock()
	names := make([]string, 0, len(m.providers))
	providers := make(map[string]TokenProvider, len(m.providers))
	for name, p := range m.providers {
		names = append(names, name)
		providers[name] = p
	}
	m.providersMu.RUnlock()
	sort.Strings(names)

	valid := make([]string, 0, len(names))
	for _, name := range names {
		ok, err := providers[name].CanGenerateTwoFactorToken(ctx, m, user)
		if err != nil {
			return nil, err
		}
		if ok {
			valid = append(valid, name)
		}
	}
	return valid, nil
}

// GenerateTwoFactorToken issues a second-factor code through provider. The
// Authenticator provider returns "" because codes come from the device.
func (m *Manager) GenerateTwoFactorToken(ctx context.Context, user *User, provider string) (string, error) {
	return m.GenerateUserToken(ctx, user, provider, PurposeTwoFactor)
}

// VerifyTwoFactorToken checks a second-factor code. With a Redis client
// configured, failures count against the per-user attempt window and an
// exhausted window returns FailureTwoFactorRateLimited as the error.
func (m *Manager) VerifyTwoFactorToken(ctx context.Context, user *User, provider, token string) (bool, error) {
	if err := m.ready(ctx, user); err != nil {
		return false, err
	}
	p, err := m.provider(provider)
	if err != nil {
		return false, err
	}

	deps := m.flowDeps.TwoFactor
	deps.Validate = func(ctx context.Context) (bool, error) {
		return p.Validate(ctx, PurposeTwoFactor, token, m, user)
	}
	ok, err := flows.RunVerifyTwoFactor(ctx, user.ID, provider, deps)
	if err != nil {
		if errors.Is(err, FailureTwoFactorRateLimited) {
			m.logger.WarnContext(ctx, "two-factor attempts exhausted", attrUserID(user.ID), attrProvider(provider))
		}
		return false, err
	}
	return ok, nil
}

// GetTwoFactorEnabled reports whether two-factor sign-in is enabled.
func (m *Manager) GetTwoFactorEnabled(ctx context.Context, user *User) (bool, error) {
	if err := m.ready(ctx, user); err != nil {
		return false, err
	}
	if m.caps.twoFactor == nil {
		return false, notSupported("TwoFactorStore")
	}
	return m.caps.twoFactor.GetTwoFactorEnabled(ctx, user)
}

// SetTwoFactorEnabled toggles two-factor sign-in and rotates the stamp.
func (m *Manager) SetTwoFactorEnabled(ctx context.Context, user *User, enabled bool) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.twoFactor == nil {
		return Result{}, notSupported("TwoFactorStore")
	}
	if err := m.caps.twoFactor.SetTwoFactorEnabled(ctx, user, enabled); err != nil {
		return Result{}, err
	}
	res, err := m.rotateAndUpdate(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}

	event := auditEventTwoFactorDisabled
	if enabled {
		event = auditEventTwoFactorEnabled
	}
	m.emitAudit(ctx, event, true, user.ID, nil, nil)
	return Success(), nil
}

/*
====================================
AUTHENTICATOR KEY
====================================
*/

// GetAuthenticatorKey returns the Base32 authenticator key, decrypting it
// when personal data protection is on. "" means no key is set. A stored key
// that fails to unprotect returns ErrPersonalDataUnreadable.
func (m *Manager) GetAuthenticatorKey(ctx context.Context, user *User) (string, error) {
	if err := m.ready(ctx, user); err != nil {
		return "", err
	}
	if m.caps.authKey == nil {
		return "", notSupported("AuthenticatorKeyStore")
	}
	stored, err := m.caps.authKey.GetAuthenticatorKey(ctx, user)
	if err != nil || stored == "" {
		return "", err
	}
	if !m.config.Stores.ProtectPersonalData {
		return stored, nil
	}
	key, err := m.personal.Unprotect(stored)
	if err != nil {
		m.logger.WarnContext(ctx, "stored authenticator key cannot be unprotected",
			attrComponent("personal_data"), attrUserID(user.ID), attrError(err))
		return "", fmt.Errorf("%w: authenticator key: %w", ErrPersonalDataUnreadable, err)
	}
	return key, nil
}

// ResetAuthenticatorKey replaces the authenticator key with a fresh random
// one and rotates the stamp. Existing authenticator registrations stop
// working.
func (m *Manager) ResetAuthenticatorKey(ctx context.Context, user *User) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.authKey == nil {
		return Result{}, notSupported("AuthenticatorKeyStore")
	}

	_, encoded, err := totp.GenerateSecret()
	if err != nil {
		return Result{}, err
	}
	stored := encoded
	if m.config.Stores.ProtectPersonalData {
		if stored, err = m.personal.Protect(encoded); err != nil {
			return Result{}, fmt.Errorf("protect authenticator key: %w", err)
		}
	}
	if err := m.caps.authKey.SetAuthenticatorKey(ctx, user, stored); err != nil {
		return Result{}, err
	}
	res, err := m.rotateAndUpdate(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}
	m.emitAudit(ctx, auditEventAuthenticatorKeyReset, true, user.ID, nil, nil)
	return Success(), nil
}

// GenerateAuthenticatorSetup returns the key, otpauth URI and QR code an
// authenticator app needs. A key is created when the user has none.
func (m *Manager) GenerateAuthenticatorSetup(ctx context.Context, user *User) (*AuthenticatorSetup, error) {
	key, err := m.GetAuthenticatorKey(ctx, user)
	if err != nil {
		return nil, err
	}
	if key == "" {
		res, err := m.ResetAuthenticatorKey(ctx, user)
		if err != nil {
			return nil, err
		}
		if !res.Succeeded {
			return nil, res.Err()
		}
		if key, err = m.GetAuthenticatorKey(ctx, user); err != nil {
			return nil, err
		}
	}

	account := user.UserName
	if m.caps.email != nil {
		if email, err := m.caps.email.GetEmail(ctx, user); err == nil && email != "" {
			account = email
		}
	}

	uri := m.totp.ProvisionURI(key, account)
	png, err := qrcode.Encode(uri, qrcode.Medium, authenticatorQRSize)
	if err != nil {
		return nil, fmt.Errorf("encode authenticator qr code: %w", err)
	}
	return &AuthenticatorSetup{
		Key:       key,
		SharedKey: totp.FormatKey(key),
		URI:       uri,
		QRCodePNG: png,
	}, nil
}
