// Package jwt signs and verifies stamp-bound user tokens (password reset,
// email confirmation and similar single-purpose links) as compact JWS.
//
// Claims carry the user ID as subject and SHA-256 digests of the purpose and
// the security stamp current at issue time. The caller recomputes both
// digests from live state when validating, so rotating the stamp revokes
// every outstanding token.
//
// # What this package must NOT do
//
//   - Carry session or authorization claims.
//   - Read keys from the environment.
package jwt
