package password

import "strings"

// VerificationResult is the outcome of checking a password against a stored hash.
type VerificationResult int

const (
	// Failed means the password does not match or the hash is unusable.
	Failed VerificationResult = iota
	// Success means the password matches and the hash is current.
	Success
	// SuccessRehashNeeded means the password matches but the hash uses a
	// legacy format or weaker parameters and should be replaced.
	SuccessRehashNeeded
)

func (r VerificationResult) String() string {
	switch r {
	case Success:
		return "Success"
	case SuccessRehashNeeded:
		return "SuccessRehashNeeded"
	default:
		return "Failed"
	}
}

// Hasher hashes new passwords and verifies stored hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(encodedHash, password string) VerificationResult
}

// MultiHasher writes argon2id and reads argon2id, PBKDF2-SHA256 and bcrypt.
type MultiHasher struct {
	current *Argon2
	legacy  *PBKDF2
}

// NewHasher returns the default [Hasher] for cfg.
func NewHasher(cfg Config) (*MultiHasher, error) {
	current, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	legacy, err := NewPBKDF2(0)
	if err != nil {
		return nil, err
	}
	return &MultiHasher{current: current, legacy: legacy}, nil
}

// Hash returns an argon2id hash of password.
func (h *MultiHasher) Hash(password string) (string, error) {
	return h.current.Hash(password)
}

// Verify checks password against encodedHash. Malformed hashes and errors
// verify as [Failed].
func (h *MultiHasher) Verify(encodedHash, password string) VerificationResult {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		ok, err := h.current.Verify(password, encodedHash)
		if err != nil || !ok {
			return Failed
		}
		if upgrade, err := h.current.NeedsUpgrade(encodedHash); err == nil && upgrade {
			return SuccessRehashNeeded
		}
		return Success
	case strings.HasPrefix(encodedHash, "$"+pbkdf2ID+"$"):
		if len(password) > h.current.config.MaxPasswordBytes {
			return Failed
		}
		if ok, err := h.legacy.Verify(password, encodedHash); err != nil || !ok {
			return Failed
		}
		return SuccessRehashNeeded
	case isBcrypt(encodedHash):
		if ok, err := verifyBcrypt(password, encodedHash); err != nil || !ok {
			return Failed
		}
		return SuccessRehashNeeded
	default:
		return Failed
	}
}
