// Package security summarises the security posture of a configured Manager.
//
// # Architecture boundaries
//
// BuildReport is a pure function over a flat input struct. The root package
// fills the input from Config and detected store capabilities.
//
// # What this package must NOT do
//
//   - Read configuration or store state itself.
//   - Carry key material; the report holds only flags and parameters.
package security
