package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"
)

// Supported HMAC algorithms.
const (
	AlgorithmSHA1   = "SHA1"
	AlgorithmSHA256 = "SHA256"
	AlgorithmSHA512 = "SHA512"
)

// SecretBytes is the size of keys produced by [GenerateSecret].
const SecretBytes = 20

var (
	// ErrUnsupportedAlgorithm is returned for algorithms other than SHA1/SHA256/SHA512.
	ErrUnsupportedAlgorithm = errors.New("totp: unsupported algorithm")
	// ErrEmptyKey is returned when a code is computed from an empty key.
	ErrEmptyKey = errors.New("totp: empty key")
	// ErrInvalidDigits is returned when the digit count is outside 1..10.
	ErrInvalidDigits = errors.New("totp: digits must be between 1 and 10")
)

// Config controls code length, step size, validation window and HMAC algorithm.
type Config struct {
	Digits    int
	Period    int
	Skew      int
	Algorithm string
	Issuer    string
}

// DefaultConfig returns the 6 digit, 30 second, +/-2 step SHA1 profile.
func DefaultConfig() Config {
	return Config{
		Digits:    6,
		Period:    30,
		Skew:      2,
		Algorithm: AlgorithmSHA1,
	}
}

// Generator computes and validates time-based one-time passwords.
// It is immutable and safe for concurrent use.
type Generator struct {
	config Config
	mac    func() hash.Hash
}

// New validates cfg and returns a Generator.
func New(cfg Config) (*Generator, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmSHA1
	}
	cfg.Algorithm = strings.ToUpper(cfg.Algorithm)
	if cfg.Digits < 1 || cfg.Digits > 10 {
		return nil, ErrInvalidDigits
	}
	if cfg.Period <= 0 {
		return nil, errors.New("totp: period must be > 0")
	}
	if cfg.Skew < 0 {
		return nil, errors.New("totp: skew must be >= 0")
	}
	mac, err := hmacFunc(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Generator{config: cfg, mac: mac}, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() Config {
	return g.config
}

// Counter returns the time step containing now.
func (g *Generator) Counter(now time.Time) uint64 {
	unix := now.Unix()
	if unix < 0 {
		return 0
	}
	return uint64(unix) / uint64(g.config.Period)
}

// ComputeTotp returns HMAC(key, counter || modifier) reduced by RFC 4226
// dynamic truncation to the given number of digits.
func (g *Generator) ComputeTotp(key []byte, counter uint64, modifier string, digits int) (int, error) {
	if len(key) == 0 {
		return 0, ErrEmptyKey
	}
	if digits < 1 || digits > 10 {
		return 0, ErrInvalidDigits
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(g.mac, key)
	_, _ = mac.Write(msg[:])
	if modifier != "" {
		_, _ = mac.Write([]byte(modifier))
	}
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := uint64(sum[offset]&0x7f)<<24 |
		uint64(sum[offset+1])<<16 |
		uint64(sum[offset+2])<<8 |
		uint64(sum[offset+3])

	mod := uint64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return int(bin % mod), nil
}

// Generate returns the zero-padded code for the step containing now.
func (g *Generator) Generate(key []byte, modifier string, now time.Time) (string, error) {
	code, err := g.ComputeTotp(key, g.Counter(now), modifier, g.config.Digits)
	if err != nil {
		return "", err
	}
	return pad(code, g.config.Digits), nil
}

// Validate reports whether code matches any step within the configured skew
// of now. Non-numeric input is rejected before any HMAC is computed.
func (g *Generator) Validate(code string, key []byte, modifier string, now time.Time) bool {
	ok, _ := g.ValidateCounter(code, key, modifier, now)
	return ok
}

// ValidateCounter is Validate that also returns the matched counter.
func (g *Generator) ValidateCounter(code string, key []byte, modifier string, now time.Time) (bool, uint64) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) > g.config.Digits || !isNumeric(trimmed) || len(key) == 0 {
		return false, 0
	}
	// Codes compare as integers, so a dropped leading zero still matches.
	value, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return false, 0
	}
	want := []byte(pad(int(value), g.config.Digits))

	base := int64(g.Counter(now))
	for step := -int64(g.config.Skew); step <= int64(g.config.Skew); step++ {
		counter := base + step
		if counter < 0 {
			continue
		}
		generated, err := g.ComputeTotp(key, uint64(counter), modifier, g.config.Digits)
		if err != nil {
			return false, 0
		}
		if subtle.ConstantTimeCompare([]byte(pad(generated, g.config.Digits)), want) == 1 {
			return true, uint64(counter)
		}
	}
	return false, 0
}

// GenerateSecret returns a fresh random key and its Base32 encoding.
func GenerateSecret() ([]byte, string, error) {
	raw := make([]byte, SecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	return raw, EncodeBase32(raw), nil
}

func pad(code, digits int) string {
	return fmt.Sprintf("%0*d", digits, code)
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", AlgorithmSHA1:
		return sha1.New, nil
	case AlgorithmSHA256:
		return sha256.New, nil
	case AlgorithmSHA512:
		return sha512.New, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}
