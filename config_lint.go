package goIdentity

import "time"

// LintWarning is a configuration smell that is valid but probably unintended.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint returns advisory warnings for a config that already validates.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if len(c.Tokens.ProtectionKey) == 0 {
		add("protection_key_ephemeral", "no Tokens.ProtectionKey: issued tokens become invalid on restart")
	}
	if c.Tokens.TokenLifespan > 3*24*time.Hour {
		add("token_lifespan_long", "Tokens.TokenLifespan exceeds 3 days")
	}
	if c.TOTP.Skew > 2 {
		add("totp_skew_wide", "TOTP.Skew above 2 steps widens the guessing window")
	}
	if !c.Lockout.AllowedForNewUsers {
		add("lockout_disabled_for_new_users", "new users are created with lockout disabled")
	}
	if c.Lockout.MaxFailedAccessAttempts > 10 {
		add("lockout_threshold_high", "Lockout.MaxFailedAccessAttempts above 10")
	}
	if c.PasswordPolicy.RequiredLength < 8 {
		add("password_length_short", "PasswordPolicy.RequiredLength below 8")
	}
	if c.Stamp.ValidationInterval > time.Hour {
		add("stamp_interval_long", "Stamp.ValidationInterval above one hour delays session revocation")
	}
	if c.TwoFactor.MaxAttempts == 0 {
		add("two_factor_unlimited", "TwoFactor.MaxAttempts is 0: code guessing is not throttled")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "audit events are not emitted")
	}
	if c.Tokens.SigningMethod == "hs256" && len(c.Tokens.SigningKey) > 0 {
		add("signed_tokens_symmetric", "Signed tokens use hs256; verifiers need the signing secret")
	}
	return ws
}
