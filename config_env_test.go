package goIdentity

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigFromEnvOverlaysDefaults(t *testing.T) {
	key := make([]byte, 32)
	key[0] = 7
	t.Setenv("IDENTITY_LOCKOUT_MAX_FAILED_ACCESS_ATTEMPTS", "3")
	t.Setenv("IDENTITY_LOCKOUT_DEFAULT_TIME_SPAN", "15m")
	t.Setenv("IDENTITY_PASSWORD_POLICY_REQUIRED_LENGTH", "10")
	t.Setenv("IDENTITY_TOKENS_PROTECTION_KEY", base64.StdEncoding.EncodeToString(key))

	cfg, err := ConfigFromEnv(EnvOptions{Prefix: "IDENTITY_"})
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Lockout.MaxFailedAccessAttempts != 3 || cfg.Lockout.DefaultLockoutTimeSpan != 15*time.Minute {
		t.Fatalf("lockout not overlaid: %+v", cfg.Lockout)
	}
	if cfg.PasswordPolicy.RequiredLength != 10 {
		t.Fatalf("policy not overlaid: %+v", cfg.PasswordPolicy)
	}
	if len(cfg.Tokens.ProtectionKey) != 32 || cfg.Tokens.ProtectionKey[0] != 7 {
		t.Fatal("protection key not decoded")
	}
	if cfg.TOTP.Digits != 6 {
		t.Fatalf("expected untouched default digits, got %d", cfg.TOTP.Digits)
	}
}

func TestConfigFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("IDENTITY_LOCKOUT_MAX_FAILED_ACCESS_ATTEMPTS", "0")
	if _, err := ConfigFromEnv(EnvOptions{Prefix: "IDENTITY_"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestConfigFromEnvParseError(t *testing.T) {
	t.Setenv("IDENTITY_TOTP_DIGITS", "six")
	_, err := ConfigFromEnv(EnvOptions{Prefix: "IDENTITY_"})
	if !errors.Is(err, ErrConfigEnv) {
		t.Fatalf("expected ErrConfigEnv, got %v", err)
	}
}

func TestConfigFromEnvDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("GIDTEST_TOTP_ISSUER=Example\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("GIDTEST_TOTP_ISSUER") })

	cfg, err := ConfigFromEnv(EnvOptions{
		Prefix:      "GIDTEST_",
		DotEnvFiles: []string{filepath.Join(dir, "missing.env"), path},
	})
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.TOTP.Issuer != "Example" {
		t.Fatalf("expected issuer from .env, got %q", cfg.TOTP.Issuer)
	}
}
