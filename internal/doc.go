// Package internal contains helpers that are private to goIdentity, such as
// security stamp generation and digest helpers.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for recovery codes and two-factor checks
//   - limiters: Redis-backed two-factor attempt limiter
//   - lockout: pure failed-access state machine
//   - security: security posture report builder
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdentity API.
//   - Be imported by any package outside the goIdentity module.
package internal
