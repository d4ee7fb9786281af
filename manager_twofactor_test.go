package goIdentity_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/totp"
)

func deviceCode(t *testing.T, key string, at time.Time) string {
	t.Helper()
	raw, err := totp.DecodeBase32(key)
	if err != nil {
		t.Fatalf("DecodeBase32: %v", err)
	}
	g, err := totp.New(totp.DefaultConfig())
	if err != nil {
		t.Fatalf("totp.New: %v", err)
	}
	code, err := g.Generate(raw, "", at)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return code
}

func TestAuthenticatorSkewWindow(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	m, _ := newTestManager(t, testConfig(), withClock(clock))
	u := createUser(t, m, "alice", "")

	setup, err := m.GenerateAuthenticatorSetup(ctx, u)
	if err != nil {
		t.Fatalf("GenerateAuthenticatorSetup: %v", err)
	}
	if len(setup.QRCodePNG) == 0 || setup.URI == "" {
		t.Fatal("expected URI and QR code")
	}
	base := clock.Now()
	code := deviceCode(t, setup.Key, base)

	for _, d := range []time.Duration{-59 * time.Second, 0, 59 * time.Second} {
		clock.Set(base.Add(d))
		ok, err := m.VerifyTwoFactorToken(ctx, u, goIdentity.ProviderAuthenticator, code)
		if err != nil || !ok {
			t.Fatalf("expected code accepted at %v: ok=%v err=%v", d, ok, err)
		}
	}

	// Two steps of skew: the window closes at the end of the step two
	// periods after the one the code was generated in.
	closes := time.Duration(3*30-base.Unix()%30) * time.Second
	clock.Set(base.Add(closes - time.Second))
	if ok, err := m.VerifyTwoFactorToken(ctx, u, goIdentity.ProviderAuthenticator, code); err != nil || !ok {
		t.Fatalf("expected code accepted at the last second of the window: ok=%v err=%v", ok, err)
	}

	for _, d := range []time.Duration{closes, 120 * time.Second} {
		clock.Set(base.Add(d))
		if ok, _ := m.VerifyTwoFactorToken(ctx, u, goIdentity.ProviderAuthenticator, code); ok {
			t.Fatalf("expected code rejected at %v", d)
		}
	}
}

func TestResetAuthenticatorKeyInvalidatesDevice(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	m, _ := newTestManager(t, testConfig(), withClock(clock))
	u := createUser(t, m, "bob", "")

	setup, err := m.GenerateAuthenticatorSetup(ctx, u)
	if err != nil {
		t.Fatalf("GenerateAuthenticatorSetup: %v", err)
	}
	res, err := m.ResetAuthenticatorKey(ctx, u)
	mustSucceed(t, "ResetAuthenticatorKey", res, err)

	key, err := m.GetAuthenticatorKey(ctx, u)
	if err != nil || key == "" || key == setup.Key {
		t.Fatalf("expected a fresh key, got %q err=%v", key, err)
	}
	if ok, _ := m.VerifyTwoFactorToken(ctx, u, goIdentity.ProviderAuthenticator, deviceCode(t, key, clock.Now())); !ok {
		t.Fatal("expected code from the new key to verify")
	}
}

func TestProtectedAuthenticatorKeyRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Stores.ProtectPersonalData = true
	m, store := newTestManager(t, cfg)
	u := createUser(t, m, "carol", "")

	setup, err := m.GenerateAuthenticatorSetup(ctx, u)
	if err != nil {
		t.Fatalf("GenerateAuthenticatorSetup: %v", err)
	}
	stored, err := store.GetAuthenticatorKey(ctx, u)
	if err != nil {
		t.Fatalf("store GetAuthenticatorKey: %v", err)
	}
	if stored == "" || stored == setup.Key {
		t.Fatalf("expected the stored key to be protected, got %q", stored)
	}
	if ok, _ := m.VerifyTwoFactorToken(ctx, u, goIdentity.ProviderAuthenticator, deviceCode(t, setup.Key, m.Now())); !ok {
		t.Fatal("expected code to verify through the protected key")
	}
}

func TestCorruptedProtectedAuthenticatorKey(t *testing.T) {
	ctx := context.Background()
	cfg := relaxedConfig()
	cfg.Stores.ProtectPersonalData = true
	m, _ := newTestManager(t, cfg)
	u := createUser(t, m, "corrie", "password1")

	token, _ := m.GenerateEmailConfirmationToken(ctx, u)
	res, err := m.ConfirmEmail(ctx, u, token)
	mustSucceed(t, "ConfirmEmail", res, err)
	setup, err := m.GenerateAuthenticatorSetup(ctx, u)
	if err != nil {
		t.Fatalf("GenerateAuthenticatorSetup: %v", err)
	}
	res, err = m.SetTwoFactorEnabled(ctx, u, true)
	mustSucceed(t, "SetTwoFactorEnabled", res, err)
	code := deviceCode(t, setup.Key, m.Now())

	for _, stored := range []string{"k1:not-a-valid-ciphertext", "nocolon", "unknown-key:AAAA"} {
		u.AuthenticatorKey = stored

		if _, err := m.GetAuthenticatorKey(ctx, u); !errors.Is(err, goIdentity.ErrPersonalDataUnreadable) {
			t.Fatalf("%q: expected ErrPersonalDataUnreadable, got %v", stored, err)
		}
		ok, err := m.VerifyTwoFactorToken(ctx, u, goIdentity.ProviderAuthenticator, code)
		if err != nil || ok {
			t.Fatalf("%q: expected ok=false err=nil, got ok=%v err=%v", stored, ok, err)
		}
		providers, err := m.GetValidTwoFactorProviders(ctx, u)
		if err != nil {
			t.Fatalf("%q: GetValidTwoFactorProviders: %v", stored, err)
		}
		if !slices.Equal(providers, []string{goIdentity.ProviderEmail}) {
			t.Fatalf("%q: expected only Email, got %v", stored, providers)
		}
		r, err := m.CheckPasswordSignIn(ctx, u, "password1", false)
		if err != nil || r != goIdentity.SignInTwoFactorRequired {
			t.Fatalf("%q: expected RequiresTwoFactor, got %s err=%v", stored, r, err)
		}
	}
}

func TestValidTwoFactorProviders(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, testConfig())
	u := createUser(t, m, "dave", "")

	providers, err := m.GetValidTwoFactorProviders(ctx, u)
	if err != nil {
		t.Fatalf("GetValidTwoFactorProviders: %v", err)
	}
	if len(providers) != 0 {
		t.Fatalf("unconfirmed user without a key has no providers, got %v", providers)
	}

	token, _ := m.GenerateEmailConfirmationToken(ctx, u)
	res, err := m.ConfirmEmail(ctx, u, token)
	mustSucceed(t, "ConfirmEmail", res, err)
	if _, err := m.GenerateAuthenticatorSetup(ctx, u); err != nil {
		t.Fatalf("GenerateAuthenticatorSetup: %v", err)
	}

	providers, err = m.GetValidTwoFactorProviders(ctx, u)
	if err != nil {
		t.Fatalf("GetValidTwoFactorProviders: %v", err)
	}
	if !slices.Equal(providers, []string{goIdentity.ProviderAuthenticator, goIdentity.ProviderEmail}) {
		t.Fatalf("unexpected providers: %v", providers)
	}
}

func TestPasswordSignInRequiresTwoFactor(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	m, _ := newTestManager(t, relaxedConfig(), withClock(clock))
	u := createUser(t, m, "erin", "password1")

	setup, err := m.GenerateAuthenticatorSetup(ctx, u)
	if err != nil {
		t.Fatalf("GenerateAuthenticatorSetup: %v", err)
	}
	res, err := m.SetTwoFactorEnabled(ctx, u, true)
	mustSucceed(t, "SetTwoFactorEnabled", res, err)

	r, err := m.CheckPasswordSignIn(ctx, u, "password1", true)
	if err != nil || r != goIdentity.SignInTwoFactorRequired {
		t.Fatalf("expected RequiresTwoFactor, got %s err=%v", r, err)
	}

	r, err = m.TwoFactorSignIn(ctx, u, goIdentity.ProviderAuthenticator, "000000")
	if err != nil {
		t.Fatalf("TwoFactorSignIn: %v", err)
	}
	if r == goIdentity.SignInSuccess {
		t.Skip("random code matched the device window")
	}

	r, err = m.TwoFactorSignIn(ctx, u, goIdentity.ProviderAuthenticator, deviceCode(t, setup.Key, clock.Now()))
	if err != nil || r != goIdentity.SignInSuccess {
		t.Fatalf("expected Succeeded, got %s err=%v", r, err)
	}
	if n, _ := m.GetAccessFailedCount(ctx, u); n != 0 {
		t.Fatalf("expected counter reset after sign-in, got %d", n)
	}
}

func TestEmailTwoFactorCode(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, testConfig())
	u := createUser(t, m, "frank", "")

	token, _ := m.GenerateEmailConfirmationToken(ctx, u)
	res, err := m.ConfirmEmail(ctx, u, token)
	mustSucceed(t, "ConfirmEmail", res, err)

	code, err := m.GenerateTwoFactorToken(ctx, u, goIdentity.ProviderEmail)
	if err != nil {
		t.Fatalf("GenerateTwoFactorToken: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digit code, got %q", code)
	}
	if ok, err := m.VerifyTwoFactorToken(ctx, u, goIdentity.ProviderEmail, code); err != nil || !ok {
		t.Fatalf("expected email code to verify: ok=%v err=%v", ok, err)
	}
}

func TestTwoFactorAttemptsRateLimited(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	cfg.TwoFactor.MaxAttempts = 2
	cfg.TwoFactor.Cooldown = time.Minute
	clock := newTestClock()
	m, _ := newTestManager(t, cfg, withClock(clock), func(b *goIdentity.Builder) { b.WithRedis(client) })
	u := createUser(t, m, "gina", "")

	setup, err := m.GenerateAuthenticatorSetup(ctx, u)
	if err != nil {
		t.Fatalf("GenerateAuthenticatorSetup: %v", err)
	}
	good := deviceCode(t, setup.Key, clock.Now())
	bad := "000000"
	if bad == good {
		bad = "000001"
	}

	for i := 0; i < 2; i++ {
		if _, err := m.VerifyTwoFactorToken(ctx, u, goIdentity.ProviderAuthenticator, bad); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
	}
	_, err = m.VerifyTwoFactorToken(ctx, u, goIdentity.ProviderAuthenticator, good)
	if !errors.Is(err, goIdentity.FailureTwoFactorRateLimited) {
		t.Fatalf("expected FailureTwoFactorRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if ok, err := m.VerifyTwoFactorToken(ctx, u, goIdentity.ProviderAuthenticator, good); err != nil || !ok {
		t.Fatalf("expected attempts to reset after cooldown: ok=%v err=%v", ok, err)
	}
}
