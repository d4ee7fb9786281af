package goIdentity

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/totp"
)

// Config is the complete, explicit configuration of a Manager. It is copied
// at Build time; nothing in goIdentity reads process-wide settings.
type Config struct {
	Password       PasswordConfig     `envPrefix:"PASSWORD_"`
	PasswordPolicy password.Policy    `envPrefix:"PASSWORD_POLICY_"`
	User           UserConfig         `envPrefix:"USER_"`
	SignIn         SignInConfig       `envPrefix:"SIGNIN_"`
	Lockout        LockoutConfig      `envPrefix:"LOCKOUT_"`
	TOTP           TOTPConfig         `envPrefix:"TOTP_"`
	Tokens         TokensConfig       `envPrefix:"TOKENS_"`
	Stamp          StampConfig        `envPrefix:"STAMP_"`
	RecoveryCodes  RecoveryCodeConfig `envPrefix:"RECOVERY_CODES_"`
	TwoFactor      TwoFactorConfig    `envPrefix:"TWO_FACTOR_"`
	Stores         StoresConfig       `envPrefix:"STORES_"`
	Audit          AuditConfig        `envPrefix:"AUDIT_"`
	Metrics        MetricsConfig      `envPrefix:"METRICS_"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters for new hashes.
type PasswordConfig struct {
	Memory           uint32 `env:"MEMORY"` // in KB
	Time             uint32 `env:"TIME"`
	Parallelism      uint8  `env:"PARALLELISM"`
	SaltLength       uint32 `env:"SALT_LENGTH"`
	KeyLength        uint32 `env:"KEY_LENGTH"`
	MaxPasswordBytes int    `env:"MAX_BYTES"`
	// RehashOnVerify stores a fresh hash when verification reports
	// SuccessRehashNeeded.
	RehashOnVerify bool `env:"REHASH_ON_VERIFY"`
}

/*
====================================
USER / SIGN-IN CONFIG
====================================
*/

// UserConfig controls user name and email validation.
type UserConfig struct {
	// AllowedUserNameCharacters lists every permitted rune. Empty allows any.
	AllowedUserNameCharacters string `env:"ALLOWED_USERNAME_CHARACTERS"`
	RequireUniqueEmail        bool   `env:"REQUIRE_UNIQUE_EMAIL"`
}

// SignInConfig controls which confirmations sign-in checks require.
type SignInConfig struct {
	RequireConfirmedEmail       bool `env:"REQUIRE_CONFIRMED_EMAIL"`
	RequireConfirmedPhoneNumber bool `env:"REQUIRE_CONFIRMED_PHONE_NUMBER"`
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls failed-access lockout.
type LockoutConfig struct {
	AllowedForNewUsers      bool          `env:"ALLOWED_FOR_NEW_USERS"`
	MaxFailedAccessAttempts int           `env:"MAX_FAILED_ACCESS_ATTEMPTS"`
	DefaultLockoutTimeSpan  time.Duration `env:"DEFAULT_TIME_SPAN"`
}

/*
====================================
TOTP / TOKENS CONFIG
====================================
*/

// TOTPConfig controls one-time codes from every TOTP-based provider.
type TOTPConfig struct {
	Issuer    string `env:"ISSUER"`
	Digits    int    `env:"DIGITS"`
	Period    int    `env:"PERIOD"`
	Skew      int    `env:"SKEW"`
	Algorithm string `env:"ALGORITHM"`
}

// Base64Bytes is a byte slice read from configuration as standard base64.
type Base64Bytes []byte

// UnmarshalText decodes standard base64.
func (b *Base64Bytes) UnmarshalText(text []byte) error {
	out, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*b = out
	return nil
}

// TokensConfig selects the provider used for each built-in token purpose
// and keys the protected-payload and signed providers.
type TokensConfig struct {
	PasswordResetTokenProvider     string        `env:"PASSWORD_RESET_PROVIDER"`
	EmailConfirmationTokenProvider string        `env:"EMAIL_CONFIRMATION_PROVIDER"`
	ChangeEmailTokenProvider       string        `env:"CHANGE_EMAIL_PROVIDER"`
	ChangePhoneNumberTokenProvider string        `env:"CHANGE_PHONE_NUMBER_PROVIDER"`
	AuthenticatorTokenProvider     string        `env:"AUTHENTICATOR_PROVIDER"`
	TokenLifespan                  time.Duration `env:"LIFESPAN"`
	// ProtectionKey is the 32 byte master key of the Default provider. When
	// empty Build generates one, and tokens do not survive a restart.
	ProtectionKey Base64Bytes `env:"PROTECTION_KEY"`
	// SigningMethod is "hs256" or "ed25519" for the Signed provider, which is
	// registered only when SigningKey is set.
	SigningMethod string      `env:"SIGNING_METHOD"`
	SigningKey    Base64Bytes `env:"SIGNING_KEY"`
	VerifyKey     Base64Bytes `env:"VERIFY_KEY"`
}

/*
====================================
STAMP / RECOVERY / TWO-FACTOR CONFIG
====================================
*/

// StampConfig controls principal revalidation.
type StampConfig struct {
	ValidationInterval time.Duration `env:"VALIDATION_INTERVAL"`
}

// RecoveryCodeConfig controls generated recovery codes.
type RecoveryCodeConfig struct {
	Count  int `env:"COUNT"`
	Length int `env:"LENGTH"`
}

// TwoFactorConfig controls the Redis attempt limiter. It is active only when
// the Manager is built with a Redis client.
type TwoFactorConfig struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS"`
	Cooldown    time.Duration `env:"COOLDOWN"`
	RedisPrefix string        `env:"REDIS_PREFIX"`
}

// StoresConfig controls how sensitive fields are persisted.
type StoresConfig struct {
	// ProtectPersonalData encrypts authenticator keys through the
	// PersonalDataProtector before they reach the store.
	ProtectPersonalData bool `env:"PROTECT_PERSONAL_DATA"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	// DropIfFull sheds events under backpressure. Credential changes and
	// lockouts are never shed.
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"ENABLE_LATENCY_HISTOGRAMS"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// Built-in token provider names.
const (
	ProviderDefault       = "Default"
	ProviderSigned        = "Signed"
	ProviderEmail         = "Email"
	ProviderPhone         = "Phone"
	ProviderAuthenticator = "Authenticator"
)

const defaultUserNameCharacters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._@+"

func defaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: pw.MaxPasswordBytes,
			RehashOnVerify:   true,
		},
		PasswordPolicy: password.DefaultPolicy(),
		User: UserConfig{
			AllowedUserNameCharacters: defaultUserNameCharacters,
			RequireUniqueEmail:        false,
		},
		Lockout: LockoutConfig{
			AllowedForNewUsers:      true,
			MaxFailedAccessAttempts: 5,
			DefaultLockoutTimeSpan:  5 * time.Minute,
		},
		TOTP: TOTPConfig{
			Digits:    6,
			Period:    30,
			Skew:      2,
			Algorithm: totp.AlgorithmSHA1,
		},
		Tokens: TokensConfig{
			PasswordResetTokenProvider:     ProviderDefault,
			EmailConfirmationTokenProvider: ProviderDefault,
			ChangeEmailTokenProvider:       ProviderDefault,
			ChangePhoneNumberTokenProvider: ProviderPhone,
			AuthenticatorTokenProvider:     ProviderAuthenticator,
			TokenLifespan:                  24 * time.Hour,
			SigningMethod:                  "hs256",
		},
		Stamp: StampConfig{
			ValidationInterval: 30 * time.Minute,
		},
		RecoveryCodes: RecoveryCodeConfig{
			Count:  10,
			Length: 10,
		},
		TwoFactor: TwoFactorConfig{
			MaxAttempts: 5,
			Cooldown:    10 * time.Minute,
			RedisPrefix: "gid:2fa",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

// HighSecurityConfig tightens password, lockout and token settings.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.Password.Memory = 128 * 1024
	cfg.Password.Time = 4
	cfg.PasswordPolicy.RequiredLength = 12
	cfg.PasswordPolicy.RequiredUniqueChars = 6
	cfg.User.RequireUniqueEmail = true
	cfg.SignIn.RequireConfirmedEmail = true
	cfg.Lockout.MaxFailedAccessAttempts = 3
	cfg.Lockout.DefaultLockoutTimeSpan = 15 * time.Minute
	cfg.TOTP.Skew = 1
	cfg.Tokens.TokenLifespan = time.Hour
	cfg.Stamp.ValidationInterval = 5 * time.Minute
	cfg.TwoFactor.MaxAttempts = 3
	cfg.Stores.ProtectPersonalData = true
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.ProtectionKey = cloneBytes(cfg.Tokens.ProtectionKey)
	out.Tokens.SigningKey = cloneBytes(cfg.Tokens.SigningKey)
	out.Tokens.VerifyKey = cloneBytes(cfg.Tokens.VerifyKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *Config) hasherConfig() password.Config {
	return password.Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MaxPasswordBytes: c.Password.MaxPasswordBytes,
	}
}

func (c *Config) totpConfig() totp.Config {
	return totp.Config{
		Digits:    c.TOTP.Digits,
		Period:    c.TOTP.Period,
		Skew:      c.TOTP.Skew,
		Algorithm: c.TOTP.Algorithm,
		Issuer:    c.TOTP.Issuer,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Password
	if _, err := password.NewArgon2(c.hasherConfig()); err != nil {
		return err
	}
	if c.PasswordPolicy.RequiredLength < 0 {
		return errors.New("PasswordPolicy RequiredLength must be >= 0")
	}
	if c.PasswordPolicy.RequiredUniqueChars < 0 {
		return errors.New("PasswordPolicy RequiredUniqueChars must be >= 0")
	}

	// Lockout
	if c.Lockout.MaxFailedAccessAttempts <= 0 {
		return errors.New("Lockout MaxFailedAccessAttempts must be > 0")
	}
	if c.Lockout.DefaultLockoutTimeSpan <= 0 {
		return errors.New("Lockout DefaultLockoutTimeSpan must be > 0")
	}

	// TOTP
	if _, err := totp.New(c.totpConfig()); err != nil {
		return err
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("TOTP Digits must be between 6 and 8")
	}

	// Tokens
	if c.Tokens.TokenLifespan <= 0 {
		return errors.New("Tokens TokenLifespan must be > 0")
	}
	if len(c.Tokens.ProtectionKey) != 0 && len(c.Tokens.ProtectionKey) != 32 {
		return errors.New("Tokens ProtectionKey must be 32 bytes")
	}
	for _, name := range []string{
		c.Tokens.PasswordResetTokenProvider,
		c.Tokens.EmailConfirmationTokenProvider,
		c.Tokens.ChangeEmailTokenProvider,
		c.Tokens.ChangePhoneNumberTokenProvider,
		c.Tokens.AuthenticatorTokenProvider,
	} {
		if name == "" {
			return errors.New("Tokens provider names must not be empty")
		}
	}
	if len(c.Tokens.SigningKey) > 0 {
		switch c.Tokens.SigningMethod {
		case "hs256":
			if len(c.Tokens.SigningKey) < 32 {
				return errors.New("Tokens hs256 SigningKey must be >= 32 bytes")
			}
		case "ed25519":
			if len(c.Tokens.VerifyKey) == 0 {
				return errors.New("Tokens ed25519 requires VerifyKey")
			}
		default:
			return errors.New("unsupported Tokens SigningMethod")
		}
	}

	// Stamp
	if c.Stamp.ValidationInterval < 0 {
		return errors.New("Stamp ValidationInterval must be >= 0")
	}

	// Recovery codes
	if c.RecoveryCodes.Count <= 0 || c.RecoveryCodes.Count > MaxRecoveryCodes {
		return fmt.Errorf("RecoveryCodes Count must be between 1 and %d", MaxRecoveryCodes)
	}
	if c.RecoveryCodes.Length < 8 {
		return errors.New("RecoveryCodes Length must be >= 8")
	}

	// Two-factor limiter
	if c.TwoFactor.MaxAttempts < 0 {
		return errors.New("TwoFactor MaxAttempts must be >= 0")
	}
	if c.TwoFactor.MaxAttempts > 0 && c.TwoFactor.Cooldown <= 0 {
		return errors.New("TwoFactor Cooldown must be > 0 when MaxAttempts is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
