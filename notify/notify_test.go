package notify_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/memstore"
	"github.com/MrEthical07/goIdentity/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	sent []notify.Message
}

func (r *recorder) Send(_ context.Context, msg notify.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func tokenOnly(_ notify.Kind, token string) (string, string) {
	return "token", token
}

func newManager(t *testing.T) *goIdentity.Manager {
	t.Helper()
	m, err := goIdentity.New().WithStore(memstore.New()).Build()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	valid := notify.Message{To: "a@example.com", Subject: "s", Body: "b"}
	require.NoError(t, valid.Validate())

	for name, msg := range map[string]notify.Message{
		"no recipient":  {Subject: "s", Body: "b"},
		"bad recipient": {To: "not-an-address", Subject: "s", Body: "b"},
		"no subject":    {To: "a@example.com", Body: "b"},
		"no body":       {To: "a@example.com", Subject: "s"},
	} {
		assert.ErrorIs(t, msg.Validate(), notify.ErrInvalidMessage, name)
	}
}

func TestNewPostmarkSenderConfig(t *testing.T) {
	t.Parallel()

	s, err := notify.NewPostmarkSender(notify.PostmarkConfig{
		ServerToken:  "server",
		AccountToken: "account",
		From:         "no-reply@example.com",
	})
	require.NoError(t, err)
	assert.NotNil(t, s)

	for name, cfg := range map[string]notify.PostmarkConfig{
		"no server token":  {AccountToken: "a", From: "x@example.com"},
		"no account token": {ServerToken: "s", From: "x@example.com"},
		"bad from":         {ServerToken: "s", AccountToken: "a", From: "nope"},
		"bad reply-to":     {ServerToken: "s", AccountToken: "a", From: "x@example.com", ReplyTo: "nope"},
	} {
		_, err := notify.NewPostmarkSender(cfg)
		assert.ErrorIs(t, err, notify.ErrInvalidConfig, name)
	}
}

func TestPostmarkSenderRejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	s, err := notify.NewPostmarkSender(notify.PostmarkConfig{
		ServerToken: "server", AccountToken: "account", From: "no-reply@example.com",
	})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Send(context.Background(), notify.Message{}), notify.ErrInvalidMessage)
}

func TestLogSenderOmitsBody(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := notify.NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))
	err := s.Send(context.Background(), notify.Message{
		To: "a@example.com", Subject: "Your code", Body: "secret-123456", Tag: "two-factor-code",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "a@example.com")
	assert.Contains(t, buf.String(), "two-factor-code")
	assert.NotContains(t, buf.String(), "secret-123456")
}

func TestNotifierEmailConfirmationRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	user := &goIdentity.User{UserName: "alice", Email: "alice@example.com"}
	res, err := m.Create(ctx, user)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	rec := &recorder{}
	n, err := notify.NewNotifier(m, rec, tokenOnly)
	require.NoError(t, err)

	require.NoError(t, n.SendEmailConfirmation(ctx, user))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, "alice@example.com", rec.sent[0].To)
	assert.Equal(t, string(notify.KindEmailConfirmation), rec.sent[0].Tag)

	res, err = m.ConfirmEmail(ctx, user, rec.sent[0].Body)
	require.NoError(t, err)
	assert.True(t, res.Succeeded, res.String())
	assert.True(t, user.EmailConfirmed)
}

func TestNotifierTwoFactorCode(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	user := &goIdentity.User{UserName: "bob", Email: "bob@example.com", EmailConfirmed: true}
	res, err := m.Create(ctx, user)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	rec := &recorder{}
	n, err := notify.NewNotifier(m, rec, tokenOnly)
	require.NoError(t, err)

	require.NoError(t, n.SendTwoFactorCode(ctx, user))
	require.Len(t, rec.sent, 1)

	ok, err := m.VerifyTwoFactorToken(ctx, user, goIdentity.ProviderEmail, rec.sent[0].Body)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNotifierChangeEmailGoesToNewAddress(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	user := &goIdentity.User{UserName: "carol", Email: "carol@example.com"}
	res, err := m.Create(ctx, user)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	rec := &recorder{}
	n, err := notify.NewNotifier(m, rec, tokenOnly)
	require.NoError(t, err)

	require.NoError(t, n.SendChangeEmail(ctx, user, "carol@new.example.com"))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, "carol@new.example.com", rec.sent[0].To)

	res, err = m.ChangeEmail(ctx, user, "carol@new.example.com", rec.sent[0].Body)
	require.NoError(t, err)
	assert.True(t, res.Succeeded, res.String())
	assert.Equal(t, "carol@new.example.com", user.Email)
}

func TestNotifierRequiresEmail(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	user := &goIdentity.User{UserName: "dave"}
	res, err := m.Create(ctx, user)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	n, err := notify.NewNotifier(m, &recorder{}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, n.SendPasswordReset(ctx, user), notify.ErrNoEmail)

	_, err = notify.NewNotifier(nil, &recorder{}, nil)
	assert.ErrorIs(t, err, notify.ErrInvalidConfig)
}

func TestDefaultFormatterNeverEmpty(t *testing.T) {
	t.Parallel()

	for _, k := range []notify.Kind{
		notify.KindEmailConfirmation, notify.KindPasswordReset,
		notify.KindChangeEmail, notify.KindTwoFactorCode,
	} {
		subject, body := notify.DefaultFormatter(k, "tok")
		assert.NotEmpty(t, subject)
		assert.Contains(t, body, "tok")
	}
}
