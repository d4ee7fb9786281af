package notify

import (
	"context"
	"errors"
	"fmt"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Kind identifies what a notification carries.
type Kind string

const (
	KindEmailConfirmation Kind = "email-confirmation"
	KindPasswordReset     Kind = "password-reset"
	KindChangeEmail       Kind = "change-email"
	KindTwoFactorCode     Kind = "two-factor-code"
)

// Formatter renders the subject and body for a token.
type Formatter func(kind Kind, token string) (subject, body string)

// DefaultFormatter renders short plain-text messages.
func DefaultFormatter(kind Kind, token string) (string, string) {
	switch kind {
	case KindEmailConfirmation:
		return "Confirm your email", "Use this token to confirm your email address:\n\n" + token
	case KindPasswordReset:
		return "Reset your password", "Use this token to reset your password:\n\n" + token +
			"\n\nIf you did not ask for a reset, ignore this message."
	case KindChangeEmail:
		return "Confirm your new email", "Use this token to confirm your new email address:\n\n" + token
	case KindTwoFactorCode:
		return "Your sign-in code", "Your sign-in code is " + token
	default:
		return string(kind), token
	}
}

// ErrNoEmail is returned when the user has no email address on file.
var ErrNoEmail = errors.New("notify: user has no email address")

// Notifier issues tokens through a Manager and delivers them by email.
type Notifier struct {
	manager *goIdentity.Manager
	sender  Sender
	format  Formatter
}

// NewNotifier returns a Notifier. A nil format uses DefaultFormatter.
func NewNotifier(manager *goIdentity.Manager, sender Sender, format Formatter) (*Notifier, error) {
	if manager == nil || sender == nil {
		return nil, fmt.Errorf("%w: manager and sender are required", ErrInvalidConfig)
	}
	if format == nil {
		format = DefaultFormatter
	}
	return &Notifier{manager: manager, sender: sender, format: format}, nil
}

// SendEmailConfirmation mails an email confirmation token.
func (n *Notifier) SendEmailConfirmation(ctx context.Context, user *goIdentity.User) error {
	to, err := n.emailOf(ctx, user)
	if err != nil {
		return err
	}
	token, err := n.manager.GenerateEmailConfirmationToken(ctx, user)
	if err != nil {
		return err
	}
	return n.deliver(ctx, KindEmailConfirmation, to, token)
}

// SendPasswordReset mails a password reset token.
func (n *Notifier) SendPasswordReset(ctx context.Context, user *goIdentity.User) error {
	to, err := n.emailOf(ctx, user)
	if err != nil {
		return err
	}
	token, err := n.manager.GeneratePasswordResetToken(ctx, user)
	if err != nil {
		return err
	}
	return n.deliver(ctx, KindPasswordReset, to, token)
}

// SendChangeEmail mails a change-email token to the new address.
func (n *Notifier) SendChangeEmail(ctx context.Context, user *goIdentity.User, newEmail string) error {
	token, err := n.manager.GenerateChangeEmailToken(ctx, user, newEmail)
	if err != nil {
		return err
	}
	return n.deliver(ctx, KindChangeEmail, newEmail, token)
}

// SendTwoFactorCode mails a code from the Email two-factor provider.
func (n *Notifier) SendTwoFactorCode(ctx context.Context, user *goIdentity.User) error {
	to, err := n.emailOf(ctx, user)
	if err != nil {
		return err
	}
	token, err := n.manager.GenerateTwoFactorToken(ctx, user, goIdentity.ProviderEmail)
	if err != nil {
		return err
	}
	return n.deliver(ctx, KindTwoFactorCode, to, token)
}

func (n *Notifier) emailOf(ctx context.Context, user *goIdentity.User) (string, error) {
	email, err := n.manager.GetEmail(ctx, user)
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", ErrNoEmail
	}
	return email, nil
}

func (n *Notifier) deliver(ctx context.Context, kind Kind, to, token string) error {
	subject, body := n.format(kind, token)
	return n.sender.Send(ctx, Message{To: to, Subject: subject, Body: body, Tag: string(kind)})
}
