package dataprotect

import "errors"

var (
	// ErrInvalidKey is returned when a key is not exactly KeySize bytes.
	ErrInvalidKey = errors.New("dataprotect: key must be 32 bytes")
	// ErrInvalidPurpose is returned for an empty purpose string.
	ErrInvalidPurpose = errors.New("dataprotect: purpose must not be empty")
	// ErrKeyDerivationFailed wraps HKDF failures.
	ErrKeyDerivationFailed = errors.New("dataprotect: key derivation failed")
	// ErrEncryptionFailed wraps cipher failures while protecting.
	ErrEncryptionFailed = errors.New("dataprotect: encryption failed")
	// ErrDecryptionFailed is returned when a payload fails authentication.
	ErrDecryptionFailed = errors.New("dataprotect: decryption failed")
	// ErrFormat is returned for protected values that are not "keyId:ciphertext"
	// or whose ciphertext is empty or not valid base64.
	ErrFormat = errors.New("dataprotect: malformed protected value")
	// ErrUnknownKey is returned when the key ring has no key for a key ID.
	ErrUnknownKey = errors.New("dataprotect: unknown key id")
)
