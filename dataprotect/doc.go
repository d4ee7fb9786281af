// Package dataprotect provides purpose-scoped authenticated encryption for
// tokens and the key-ring based protector used for personal data at rest.
//
// A [Protector] derives one AES-256-GCM key per purpose chain from a master
// key with HKDF-SHA-256, so payloads protected for one purpose never open
// under another. A [PersonalDataProtector] encrypts field values into the
// "keyId:ciphertext" form, which lets stored values outlive key rotation.
//
// # What this package must NOT do
//
//   - Log plaintext, ciphertext, or key material.
//   - Import any other goIdentity package.
package dataprotect
