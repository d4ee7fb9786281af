// Package totp implements the Base32 key codec and the RFC 4226/6238
// one-time-password generator used by the stamp-based and authenticator
// token providers.
//
// # Architecture boundaries
//
// The package is pure computation. It holds no mutable state, performs no I/O,
// and knows nothing about users or stores. Callers supply key bytes, an optional
// modifier, and the current time.
//
// # What this package must NOT do
//
//   - Log or retain key material.
//   - Import any other goIdentity package.
package totp
