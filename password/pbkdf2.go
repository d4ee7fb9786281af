package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2ID            = "pbkdf2-sha256"
	pbkdf2SaltLength    = 16
	pbkdf2KeyLength     = 32
	minPBKDF2Iterations = 10_000
	maxPBKDF2Iterations = 10_000_000

	// DefaultPBKDF2Iterations is the iteration count used by NewPBKDF2(0).
	DefaultPBKDF2Iterations = 600_000
)

// PBKDF2 hashes and verifies PBKDF2-HMAC-SHA256 hashes in the form
// $pbkdf2-sha256$i=<iterations>$<salt>$<hash>.
type PBKDF2 struct {
	iterations int
}

// NewPBKDF2 returns a PBKDF2 hasher. Zero selects DefaultPBKDF2Iterations.
func NewPBKDF2(iterations int) (*PBKDF2, error) {
	if iterations == 0 {
		iterations = DefaultPBKDF2Iterations
	}
	if iterations < minPBKDF2Iterations {
		return nil, errors.New("password pbkdf2 iterations must be >= 10000")
	}
	if iterations > maxPBKDF2Iterations {
		return nil, errors.New("password pbkdf2 iterations must be <= 10000000")
	}
	return &PBKDF2{iterations: iterations}, nil
}

// Hash returns a PBKDF2 hash of password with a fresh salt.
func (p *PBKDF2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, pbkdf2SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(password), salt, p.iterations, pbkdf2KeyLength, sha256.New)
	return fmt.Sprintf("$%s$i=%d$%s$%s",
		pbkdf2ID,
		p.iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash.
func (p *PBKDF2) Verify(password, encodedHash string) (bool, error) {
	parsed, err := parsePBKDF2(encodedHash)
	if err != nil {
		return false, err
	}
	key := pbkdf2.Key([]byte(password), parsed.salt, parsed.iterations, len(parsed.hash), sha256.New)
	return subtle.ConstantTimeCompare(key, parsed.hash) == 1, nil
}

// NeedsUpgrade reports whether encodedHash used fewer iterations than p.
func (p *PBKDF2) NeedsUpgrade(encodedHash string) (bool, error) {
	parsed, err := parsePBKDF2(encodedHash)
	if err != nil {
		return false, err
	}
	return parsed.iterations < p.iterations || len(parsed.hash) != pbkdf2KeyLength, nil
}

type parsedPBKDF2 struct {
	iterations int
	salt       []byte
	hash       []byte
}

func parsePBKDF2(encodedHash string) (*parsedPBKDF2, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != pbkdf2ID {
		return nil, malformed("invalid pbkdf2 format")
	}
	iterText, ok := strings.CutPrefix(parts[2], "i=")
	if !ok {
		return nil, malformed("missing pbkdf2 iterations")
	}
	iterations, err := strconv.Atoi(iterText)
	if err != nil || iterations < 1 || iterations > maxPBKDF2Iterations {
		return nil, malformed("invalid pbkdf2 iterations")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(salt) == 0 {
		return nil, malformed("invalid pbkdf2 salt")
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(hash) == 0 || len(hash) > 4*pbkdf2KeyLength {
		return nil, malformed("invalid pbkdf2 hash")
	}
	return &parsedPBKDF2{iterations: iterations, salt: salt, hash: hash}, nil
}
