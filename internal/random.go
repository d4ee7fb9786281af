package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"math/big"
)

const securityStampBytes = 20

var stampEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewSecurityStamp returns 160 random bits, Base32 encoded.
func NewSecurityStamp() (string, error) {
	var raw [securityStampBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return stampEncoding.EncodeToString(raw[:]), nil
}

// RandomIndex returns a uniform integer in [0, max).
func RandomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// DigestHex is the hex SHA-256 of v.
func DigestHex(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
