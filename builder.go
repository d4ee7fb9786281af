package goIdentity

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/goIdentity/dataprotect"
	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/totp"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a Manager. Builders are single-use.
type Builder struct {
	config Config
	store  UserStore
	redis  redis.UniversalClient

	logger    *slog.Logger
	auditSink AuditSink
	clock     func() time.Time
	hasher    password.Hasher
	personal  *dataprotect.PersonalDataProtector
	providers map[string]TokenProvider

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config:    defaultConfig(),
		providers: map[string]TokenProvider{},
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the backing store. It must implement UserStore; every other
// capability is detected by type assertion in Build.
func (b *Builder) WithStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithRedis enables the two-factor attempt limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination. Events flow only when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides time.Now for lockout, stamps and tokens.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithPasswordHasher replaces the argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithPersonalDataProtector sets the protector used for authenticator keys
// when Config.Stores.ProtectPersonalData is enabled.
func (b *Builder) WithPersonalDataProtector(p *dataprotect.PersonalDataProtector) *Builder {
	b.personal = p
	return b
}

// WithTokenProvider registers an extra provider, or replaces a built-in one
// of the same name.
func (b *Builder) WithTokenProvider(name string, p TokenProvider) *Builder {
	b.providers[name] = p
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the password hashing latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, detects store capabilities and wires
// every component.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		h, err := password.NewHasher(cfg.hasherConfig())
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	// -------- TOTP --------
	gen, err := totp.New(cfg.totpConfig())
	if err != nil {
		return nil, err
	}

	// -------- DATA PROTECTION --------
	masterKey := cfg.Tokens.ProtectionKey
	if len(masterKey) == 0 {
		masterKey, err = dataprotect.GenerateKey()
		if err != nil {
			return nil, err
		}
		logger.Warn("no token protection key configured; generated an ephemeral key, issued tokens will not survive a restart",
			slog.String("component", "builder"))
	}
	protector, err := dataprotect.NewProtector(masterKey, "goIdentity")
	if err != nil {
		return nil, err
	}
	if cfg.Stores.ProtectPersonalData && b.personal == nil {
		return nil, errors.New("Stores ProtectPersonalData requires a personal data protector")
	}

	m := &Manager{
		config:    cfg,
		store:     b.store,
		caps:      detectCapabilities(b.store),
		hasher:    hasher,
		totp:      gen,
		protector: protector,
		personal:  b.personal,
		logger:    logger,
		now:       clock,
		metrics:   NewMetrics(cfg.Metrics),
		providers: make(map[string]TokenProvider, len(b.providers)+5),
	}

	// -------- TOKEN PROVIDERS --------
	if err := m.registerBuiltinProviders(); err != nil {
		return nil, err
	}
	for name, p := range b.providers {
		if err := m.RegisterTokenProvider(name, p); err != nil {
			return nil, err
		}
	}
	for _, name := range []string{
		cfg.Tokens.PasswordResetTokenProvider,
		cfg.Tokens.EmailConfirmationTokenProvider,
		cfg.Tokens.ChangeEmailTokenProvider,
		cfg.Tokens.ChangePhoneNumberTokenProvider,
	} {
		if _, ok := m.providers[name]; !ok {
			return nil, fmt.Errorf("%w: token provider %q is not registered", ErrNotSupported, name)
		}
	}

	// -------- LIMITER / AUDIT --------
	if b.redis != nil && cfg.TwoFactor.MaxAttempts > 0 {
		m.limiter = limiters.NewTwoFactorLimiter(b.redis, limiters.TwoFactorConfig{
			MaxAttempts: cfg.TwoFactor.MaxAttempts,
			Cooldown:    cfg.TwoFactor.Cooldown,
			Prefix:      cfg.TwoFactor.RedisPrefix,
		})
	}
	m.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Critical:   criticalAuditEvent,
		Now:        m.now,
	}, b.auditSink)
	m.flowDeps = m.buildFlowDeps()

	b.built = true
	return m, nil
}

func (m *Manager) registerBuiltinProviders() error {
	def, err := NewDataProtectorTokenProvider(m.protector, m.config.Tokens.TokenLifespan)
	if err != nil {
		return err
	}
	m.providers[ProviderDefault] = def

	email, err := NewEmailTokenProvider(m.totp)
	if err != nil {
		return err
	}
	m.providers[ProviderEmail] = email

	phone, err := NewPhoneNumberTokenProvider(m.totp)
	if err != nil {
		return err
	}
	m.providers[ProviderPhone] = phone

	auth, err := NewAuthenticatorTokenProvider(m.totp)
	if err != nil {
		return err
	}
	m.providers[ProviderAuthenticator] = auth

	if len(m.config.Tokens.SigningKey) > 0 {
		codec, err := jwt.NewManager(jwt.Config{
			TTL:           m.config.Tokens.TokenLifespan,
			SigningMethod: jwt.SigningMethod(m.config.Tokens.SigningMethod),
			PrivateKey:    cloneBytes(m.config.Tokens.SigningKey),
			PublicKey:     cloneBytes(m.config.Tokens.VerifyKey),
			Issuer:        "goIdentity",
		})
		if err != nil {
			return err
		}
		signed, err := NewSignedTokenProvider(codec)
		if err != nil {
			return err
		}
		m.providers[ProviderSigned] = signed
	}
	return nil
}
