// Package flows contains pure-function orchestrators for the Manager's
// multi-step credential operations: recovery code generation and
// redemption, and rate-limited second-factor verification.
//
// Each flow function accepts a typed dependency struct and returns results
// without side-effects beyond those dependencies, so flows are unit tested
// with plain function fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate store callbacks, the attempt limiter, the audit
// dispatcher and metrics. They do NOT own any of these resources; ownership
// stays with the Manager.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goIdentity (to avoid import cycles).
//   - Perform I/O directly; all I/O goes through dependency functions.
package flows
