package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
)

var (
	// ErrInvalidMessage is returned when a Message is missing a recipient,
	// subject or body.
	ErrInvalidMessage = errors.New("notify: invalid message")
	// ErrInvalidConfig is returned by sender constructors.
	ErrInvalidConfig = errors.New("notify: invalid config")
	// ErrSendFailed wraps delivery failures.
	ErrSendFailed = errors.New("notify: send failed")
)

// Message is a rendered notification.
type Message struct {
	To      string
	Subject string
	Body    string
	Tag     string
}

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: recipient: %v", ErrInvalidMessage, err)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.Body == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
