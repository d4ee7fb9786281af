package goIdentity

import (
	"context"
	"fmt"
	"strings"
)

// RegisterTokenProvider adds or replaces the provider registered as name.
func (m *Manager) RegisterTokenProvider(name string, p TokenProvider) error {
	if m == nil {
		return ErrManagerNotReady
	}
	if name == "" || p == nil {
		return fmt.Errorf("%w: token provider name and value are required", ErrInvalidArgument)
	}
	m.providersMu.Lock()
	m.providers[name] = p
	m.providersMu.Unlock()
	return nil
}

func (m *Manager) provider(name string) (TokenProvider, error) {
	m.providersMu.RLock()
	p, ok := m.providers[name]
	m.providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: token provider %q is not registered", ErrNotSupported, name)
	}
	return p, nil
}

// GenerateUserToken issues a token for purpose through the named provider.
func (m *Manager) GenerateUserToken(ctx context.Context, user *User, providerName, purpose string) (string, error) {
	if err := m.ready(ctx, user); err != nil {
		return "", err
	}
	p, err := m.provider(providerName)
	if err != nil {
		return "", err
	}
	token, err := p.Generate(ctx, purpose, m, user)
	if err != nil {
		return "", err
	}
	m.metricInc(MetricTokenGenerated)
	return token, nil
}

// VerifyUserToken reports whether token was issued by the named provider for
// purpose and user and is still valid.
func (m *Manager) VerifyUserToken(ctx context.Context, user *User, providerName, purpose, token string) (bool, error) {
	if err := m.ready(ctx, user); err != nil {
		return false, err
	}
	p, err := m.provider(providerName)
	if err != nil {
		return false, err
	}
	ok, err := p.Validate(ctx, purpose, token, m, user)
	if err != nil {
		return false, err
	}
	if !ok {
		m.metricInc(MetricTokenRejected)
		m.logger.DebugContext(ctx, "token rejected", attrUserID(user.ID), attrProvider(providerName), attrPurpose(purposeLabel(purpose)))
		m.emitAudit(ctx, auditEventTokenRejected, false, user.ID, FailureInvalidToken, func() map[string]string {
			return map[string]string{"provider": providerName, "purpose": purposeLabel(purpose)}
		})
		return false, nil
	}
	m.metricInc(MetricTokenValidated)
	return true, nil
}

// purposeLabel drops the address from change purposes before logging.
func purposeLabel(purpose string) string {
	label, _, _ := strings.Cut(purpose, ":")
	return label
}

/*
====================================
EMAIL
====================================
*/

// GetEmail returns the user's email address.
func (m *Manager) GetEmail(ctx context.Context, user *User) (string, error) {
	if err := m.ready(ctx, user); err != nil {
		return "", err
	}
	if m.caps.email == nil {
		return "", notSupported("EmailStore")
	}
	return m.caps.email.GetEmail(ctx, user)
}

// IsEmailConfirmed reports whether the email address was confirmed.
func (m *Manager) IsEmailConfirmed(ctx context.Context, user *User) (bool, error) {
	if err := m.ready(ctx, user); err != nil {
		return false, err
	}
	if m.caps.email == nil {
		return false, notSupported("EmailStore")
	}
	return m.caps.email.GetEmailConfirmed(ctx, user)
}

// SetEmail replaces the email address and marks it unconfirmed.
func (m *Manager) SetEmail(ctx context.Context, user *User, email string) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.email == nil {
		return Result{}, notSupported("EmailStore")
	}
	if err := m.caps.email.SetEmail(ctx, user, email); err != nil {
		return Result{}, err
	}
	if err := m.caps.email.SetEmailConfirmed(ctx, user, false); err != nil {
		return Result{}, err
	}
	return m.rotateAndUpdate(ctx, user)
}

// GenerateEmailConfirmationToken issues a token for ConfirmEmail.
func (m *Manager) GenerateEmailConfirmationToken(ctx context.Context, user *User) (string, error) {
	return m.GenerateUserToken(ctx, user, m.config.Tokens.EmailConfirmationTokenProvider, PurposeEmailConfirmation)
}

// ConfirmEmail marks the email address confirmed when token is valid.
func (m *Manager) ConfirmEmail(ctx context.Context, user *User, token string) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.email == nil {
		return Result{}, notSupported("EmailStore")
	}
	ok, err := m.VerifyUserToken(ctx, user, m.config.Tokens.EmailConfirmationTokenProvider, PurposeEmailConfirmation, token)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Failed(FailureInvalidToken), nil
	}
	if err := m.caps.email.SetEmailConfirmed(ctx, user, true); err != nil {
		return Result{}, err
	}
	res, err := m.updateUser(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}
	m.emitAudit(ctx, auditEventEmailConfirmed, true, user.ID, nil, nil)
	return Success(), nil
}

// GenerateChangeEmailToken issues a token that authorizes ChangeEmail to
// newEmail.
func (m *Manager) GenerateChangeEmailToken(ctx context.Context, user *User, newEmail string) (string, error) {
	return m.GenerateUserToken(ctx, user, m.config.Tokens.ChangeEmailTokenProvider, PurposeChangeEmail(newEmail))
}

// ChangeEmail sets a confirmed newEmail when token was issued for it.
func (m *Manager) ChangeEmail(ctx context.Context, user *User, newEmail, token string) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.email == nil {
		return Result{}, notSupported("EmailStore")
	}
	ok, err := m.VerifyUserToken(ctx, user, m.config.Tokens.ChangeEmailTokenProvider, PurposeChangeEmail(newEmail), token)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Failed(FailureInvalidToken), nil
	}
	if err := m.caps.email.SetEmail(ctx, user, newEmail); err != nil {
		return Result{}, err
	}
	if err := m.caps.email.SetEmailConfirmed(ctx, user, true); err != nil {
		return Result{}, err
	}
	res, err := m.rotateAndUpdate(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}
	m.emitAudit(ctx, auditEventEmailChanged, true, user.ID, nil, nil)
	return Success(), nil
}

/*
====================================
PHONE NUMBER
====================================
*/

// GetPhoneNumber returns the user's phone number.
func (m *Manager) GetPhoneNumber(ctx context.Context, user *User) (string, error) {
	if err := m.ready(ctx, user); err != nil {
		return "", err
	}
	if m.caps.phone == nil {
		return "", notSupported("PhoneNumberStore")
	}
	return m.caps.phone.GetPhoneNumber(ctx, user)
}

// IsPhoneNumberConfirmed reports whether the phone number was confirmed.
func (m *Manager) IsPhoneNumberConfirmed(ctx context.Context, user *User) (bool, error) {
	if err := m.ready(ctx, user); err != nil {
		return false, err
	}
	if m.caps.phone == nil {
		return false, notSupported("PhoneNumberStore")
	}
	return m.caps.phone.GetPhoneNumberConfirmed(ctx, user)
}

// SetPhoneNumber replaces the phone number and marks it unconfirmed.
func (m *Manager) SetPhoneNumber(ctx context.Context, user *User, phone string) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.phone == nil {
		return Result{}, notSupported("PhoneNumberStore")
	}
	if err := m.caps.phone.SetPhoneNumber(ctx, user, phone); err != nil {
		return Result{}, err
	}
	if err := m.caps.phone.SetPhoneNumberConfirmed(ctx, user, false); err != nil {
		return Result{}, err
	}
	return m.rotateAndUpdate(ctx, user)
}

// GenerateChangePhoneNumberToken issues a code that authorizes
// ChangePhoneNumber to phone.
func (m *Manager) GenerateChangePhoneNumberToken(ctx context.Context, user *User, phone string) (string, error) {
	return m.GenerateUserToken(ctx, user, m.config.Tokens.ChangePhoneNumberTokenProvider, PurposeChangePhoneNumber(phone))
}

// VerifyChangePhoneNumberToken checks a code without changing anything.
func (m *Manager) VerifyChangePhoneNumberToken(ctx context.Context, user *User, token, phone string) (bool, error) {
	return m.VerifyUserToken(ctx, user, m.config.Tokens.ChangePhoneNumberTokenProvider, PurposeChangePhoneNumber(phone), token)
}

// ChangePhoneNumber sets a confirmed phone when token was issued for it.
func (m *Manager) ChangePhoneNumber(ctx context.Context, user *User, phone, token string) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.phone == nil {
		return Result{}, notSupported("PhoneNumberStore")
	}
	ok, err := m.VerifyChangePhoneNumberToken(ctx, user, token, phone)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Failed(FailureInvalidToken), nil
	}
	if err := m.caps.phone.SetPhoneNumber(ctx, user, phone); err != nil {
		return Result{}, err
	}
	if err := m.caps.phone.SetPhoneNumberConfirmed(ctx, user, true); err != nil {
		return Result{}, err
	}
	res, err := m.rotateAndUpdate(ctx, user)
	if err != nil || !res.Succeeded {
		return res, err
	}
	m.emitAudit(ctx, auditEventPhoneChanged, true, user.ID, nil, nil)
	return Success(), nil
}
