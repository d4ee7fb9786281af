package goIdentity

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
)

// AuditEvent is a structured audit record emitted by the Manager. It never
// carries passwords, tokens, stamps or keys.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the Manager's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink is an [AuditSink] that writes events as structured log records.
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink] that logs through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// SignInResult is the outcome of a sign-in check. At most one of the
// negative flags is set.
type SignInResult struct {
	Succeeded         bool
	IsLockedOut       bool
	IsNotAllowed      bool
	RequiresTwoFactor bool
}

// Sign-in outcomes without payload.
var (
	SignInSuccess           = SignInResult{Succeeded: true}
	SignInFailed            = SignInResult{}
	SignInLockedOut         = SignInResult{IsLockedOut: true}
	SignInNotAllowed        = SignInResult{IsNotAllowed: true}
	SignInTwoFactorRequired = SignInResult{RequiresTwoFactor: true}
)

func (r SignInResult) String() string {
	switch {
	case r.Succeeded:
		return "Succeeded"
	case r.IsLockedOut:
		return "Lockedout"
	case r.IsNotAllowed:
		return "NotAllowed"
	case r.RequiresTwoFactor:
		return "RequiresTwoFactor"
	default:
		return "Failed"
	}
}

// AuthenticatorSetup is what a user needs to register an authenticator app.
// Key is the raw Base32 secret; SharedKey is the same value in display
// groups.
type AuthenticatorSetup struct {
	Key       string
	SharedKey string
	URI       string
	QRCodePNG []byte
}
