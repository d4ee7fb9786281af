package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Report struct {
	Argon2                   PasswordReport
	PasswordMinLength        int
	PasswordPolicyComplete   bool
	TOTPAlgorithm            string
	TOTPDigits               int
	TOTPSkew                 int
	TokenLifespan            time.Duration
	ProtectionKeyPersistent  bool
	SignedTokensActive       bool
	SigningAlgorithm         string
	StampValidationInterval  time.Duration
	LockoutForNewUsers       bool
	MaxFailedAccessAttempts  int
	LockoutDuration          time.Duration
	TwoFactorRateLimited     bool
	PersonalDataProtected    bool
	ConfirmedAccountRequired bool
	AtomicAccessFailed       bool
	AtomicRecoveryRedeem     bool
	Warnings                 []string
}

type ReportInput struct {
	Password                    PasswordReport
	RequiredLength              int
	RequireDigit                bool
	RequireLowercase            bool
	RequireUppercase            bool
	RequireNonAlphanumeric      bool
	TOTPAlgorithm               string
	TOTPDigits                  int
	TOTPSkew                    int
	TokenLifespan               time.Duration
	ProtectionKeyConfigured     bool
	SigningKeyConfigured        bool
	SigningAlgorithm            string
	StampValidationInterval     time.Duration
	LockoutAllowedForNewUsers   bool
	MaxFailedAccessAttempts     int
	LockoutDuration             time.Duration
	TwoFactorMaxAttempts        int
	RedisConfigured             bool
	ProtectPersonalData         bool
	RequireConfirmedEmail       bool
	RequireConfirmedPhoneNumber bool
	StoreHasAccessFailedCounter bool
	StoreHasRecoveryRedeemer    bool
}

func BuildReport(input ReportInput) Report {
	policyComplete := input.RequireDigit &&
		input.RequireLowercase &&
		input.RequireUppercase &&
		input.RequireNonAlphanumeric

	r := Report{
		Argon2:                   input.Password,
		PasswordMinLength:        input.RequiredLength,
		PasswordPolicyComplete:   policyComplete,
		TOTPAlgorithm:            input.TOTPAlgorithm,
		TOTPDigits:               input.TOTPDigits,
		TOTPSkew:                 input.TOTPSkew,
		TokenLifespan:            input.TokenLifespan,
		ProtectionKeyPersistent:  input.ProtectionKeyConfigured,
		SignedTokensActive:       input.SigningKeyConfigured,
		StampValidationInterval:  input.StampValidationInterval,
		LockoutForNewUsers:       input.LockoutAllowedForNewUsers,
		MaxFailedAccessAttempts:  input.MaxFailedAccessAttempts,
		LockoutDuration:          input.LockoutDuration,
		TwoFactorRateLimited:     input.RedisConfigured && input.TwoFactorMaxAttempts > 0,
		PersonalDataProtected:    input.ProtectPersonalData,
		ConfirmedAccountRequired: input.RequireConfirmedEmail || input.RequireConfirmedPhoneNumber,
		AtomicAccessFailed:       input.StoreHasAccessFailedCounter,
		AtomicRecoveryRedeem:     input.StoreHasRecoveryRedeemer,
	}
	if input.SigningKeyConfigured {
		r.SigningAlgorithm = input.SigningAlgorithm
	}

	if !r.ProtectionKeyPersistent {
		r.Warnings = append(r.Warnings, "protection key is ephemeral; tokens are lost on restart")
	}
	if !r.LockoutForNewUsers {
		r.Warnings = append(r.Warnings, "lockout is disabled for new users")
	}
	if !r.TwoFactorRateLimited {
		r.Warnings = append(r.Warnings, "two-factor attempts are not rate limited")
	}
	if input.TOTPSkew > 2 {
		r.Warnings = append(r.Warnings, "totp skew above 2 steps widens the guessing window")
	}
	if input.StampValidationInterval == 0 {
		r.Warnings = append(r.Warnings, "stamp validation runs on every request")
	}
	if !r.AtomicAccessFailed {
		r.Warnings = append(r.Warnings, "store increments access failures with read-modify-write")
	}
	if !r.AtomicRecoveryRedeem {
		r.Warnings = append(r.Warnings, "store redeems recovery codes with read-modify-write")
	}
	return r
}
