package goIdentity

import "github.com/MrEthical07/goIdentity/internal/security"

// SecurityReport summarises the active security posture. Warnings lists
// settings that weaken it.
type SecurityReport = security.Report

// PasswordConfigReport is the argon2id section of a SecurityReport.
type PasswordConfigReport = security.PasswordReport

// SecurityReport reports the configuration and store capabilities in
// effect.
func (m *Manager) SecurityReport() SecurityReport {
	if m == nil {
		return SecurityReport{}
	}
	c := m.config
	return security.BuildReport(security.ReportInput{
		Password: security.PasswordReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		RequiredLength:              c.PasswordPolicy.RequiredLength,
		RequireDigit:                c.PasswordPolicy.RequireDigit,
		RequireLowercase:            c.PasswordPolicy.RequireLowercase,
		RequireUppercase:            c.PasswordPolicy.RequireUppercase,
		RequireNonAlphanumeric:      c.PasswordPolicy.RequireNonAlphanumeric,
		TOTPAlgorithm:               c.TOTP.Algorithm,
		TOTPDigits:                  c.TOTP.Digits,
		TOTPSkew:                    c.TOTP.Skew,
		TokenLifespan:               c.Tokens.TokenLifespan,
		ProtectionKeyConfigured:     len(c.Tokens.ProtectionKey) > 0,
		SigningKeyConfigured:        len(c.Tokens.SigningKey) > 0,
		SigningAlgorithm:            c.Tokens.SigningMethod,
		StampValidationInterval:     c.Stamp.ValidationInterval,
		LockoutAllowedForNewUsers:   c.Lockout.AllowedForNewUsers,
		MaxFailedAccessAttempts:     c.Lockout.MaxFailedAccessAttempts,
		LockoutDuration:             c.Lockout.DefaultLockoutTimeSpan,
		TwoFactorMaxAttempts:        c.TwoFactor.MaxAttempts,
		RedisConfigured:             m.limiter != nil,
		ProtectPersonalData:         c.Stores.ProtectPersonalData,
		RequireConfirmedEmail:       c.SignIn.RequireConfirmedEmail,
		RequireConfirmedPhoneNumber: c.SignIn.RequireConfirmedPhoneNumber,
		StoreHasAccessFailedCounter: m.caps.counter != nil,
		StoreHasRecoveryRedeemer:    m.caps.redeemer != nil,
	})
}
