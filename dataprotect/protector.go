package dataprotect

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of master and derived keys.
	KeySize = 32

	derivationInfo = "goIdentity-dataprotect-v1"
)

// Protector encrypts and authenticates payloads for one purpose chain.
// It is immutable and safe for concurrent use.
type Protector struct {
	master   []byte
	purposes []string
	aead     cipher.AEAD
}

// NewProtector derives a protector for purposes from a 32 byte master key.
func NewProtector(masterKey []byte, purposes ...string) (*Protector, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKey
	}
	if len(purposes) == 0 {
		return nil, ErrInvalidPurpose
	}
	for _, p := range purposes {
		if p == "" {
			return nil, ErrInvalidPurpose
		}
	}

	key, err := deriveKey(masterKey, purposes)
	if err != nil {
		return nil, err
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	master := make([]byte, len(masterKey))
	copy(master, masterKey)
	return &Protector{
		master:   master,
		purposes: append([]string(nil), purposes...),
		aead:     aead,
	}, nil
}

// CreateProtector returns a child protector whose purpose chain extends p's.
func (p *Protector) CreateProtector(purpose string) (*Protector, error) {
	chain := append(append([]string(nil), p.purposes...), purpose)
	return NewProtector(p.master, chain...)
}

// Purpose returns the purpose chain joined with '/'.
func (p *Protector) Purpose() string {
	return strings.Join(p.purposes, "/")
}

// Protect returns nonce || ciphertext || tag.
func (p *Protector) Protect(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}
	return p.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Unprotect authenticates and decrypts a payload produced by Protect.
func (p *Protector) Unprotect(protected []byte) ([]byte, error) {
	nonceSize := p.aead.NonceSize()
	if len(protected) < nonceSize+p.aead.Overhead() {
		return nil, ErrDecryptionFailed
	}
	nonce, ciphertext := protected[:nonceSize], protected[nonceSize:]
	plaintext, err := p.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// GenerateKey returns a random KeySize byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

func deriveKey(master []byte, purposes []string) ([]byte, error) {
	info := derivationInfo + "\x00" + strings.Join(purposes, "\x00")
	r := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivationFailed, err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}
	return aead, nil
}
