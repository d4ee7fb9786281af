// Package limiters provides Redis-backed attempt limiters.
//
// # Limiters
//
//   - [TwoFactorLimiter]: per-user failure window for second-factor codes
//     and recovery codes.
//
// Limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace and error types. Thresholds
// come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling package.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
