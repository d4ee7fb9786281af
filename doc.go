// Package goIdentity provides the credential core of an identity system:
// password hashing with transparent upgrades, purpose-scoped user tokens,
// TOTP second factors, recovery codes, lockout, and security stamps that
// invalidate outstanding tokens and principals.
//
// The package is designed for concurrent server workloads: Manager methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. The Manager keeps no per-user state; everything durable
// lives in the store the caller provides.
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Manager], [Builder],
// [Config], [Result], the store capability interfaces and the token
// providers. Flow orchestration, the attempt limiter, audit dispatch and the
// lockout state machine live under internal/ and are never exported.
//
// Stores implement [UserStore] and any subset of the capability interfaces.
// Operations needing a missing capability return [ErrNotSupported].
//
// # What this package must NOT do
//
//   - Send email or SMS; callers deliver generated tokens (see notify/).
//   - Serialize sessions or cookies, or evaluate authorization policy.
//   - Log or audit passwords, hashes, tokens, stamps or keys.
//   - Read process-wide settings outside of [ConfigFromEnv].
//
// # Result and error contract
//
// Expected outcomes such as a wrong password, an invalid token or a lost
// concurrency check are reported through [Result] with every violated rule
// aggregated. Errors are reserved for preconditions (nil user, missing
// capability, closed manager), cancellation and infrastructure failures.
package goIdentity
