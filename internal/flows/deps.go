package flows

// Deps groups flow dependency sets. The Manager builds the shared parts once
// (metrics, audit, limiter, errors) and binds per-user store functions on
// each call.
type Deps struct {
	RecoveryCodes RecoveryCodeDeps
	TwoFactor     TwoFactorDeps
}
