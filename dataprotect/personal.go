package dataprotect

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// KeyRing resolves encryption keys by ID.
type KeyRing interface {
	CurrentKeyID() string
	Key(id string) ([]byte, bool)
}

// Encryptor performs the symmetric encryption behind a PersonalDataProtector.
type Encryptor interface {
	Encrypt(key, plaintext []byte) ([]byte, error)
	Decrypt(key, ciphertext []byte) ([]byte, error)
}

// PersonalDataProtector protects individual field values as "keyId:ciphertext"
// where ciphertext is unpadded base64url.
type PersonalDataProtector struct {
	ring KeyRing
	enc  Encryptor
}

// NewPersonalDataProtector returns a protector over ring. A nil encryptor
// selects AES-256-GCM.
func NewPersonalDataProtector(ring KeyRing, enc Encryptor) (*PersonalDataProtector, error) {
	if ring == nil {
		return nil, errors.New("dataprotect: key ring required")
	}
	if enc == nil {
		enc = AESGCMEncryptor{}
	}
	return &PersonalDataProtector{ring: ring, enc: enc}, nil
}

// Protect encrypts plaintext under the ring's current key.
func (p *PersonalDataProtector) Protect(plaintext string) (string, error) {
	id := p.ring.CurrentKeyID()
	key, ok := p.ring.Key(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, id)
	}
	ct, err := p.enc.Encrypt(key, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return id + ":" + base64.RawURLEncoding.EncodeToString(ct), nil
}

// Unprotect reverses Protect using the key named by the value's prefix.
func (p *PersonalDataProtector) Unprotect(protected string) (string, error) {
	id, encoded, ok := strings.Cut(protected, ":")
	if !ok || id == "" {
		return "", fmt.Errorf("%w: missing key id", ErrFormat)
	}
	if encoded == "" {
		return "", fmt.Errorf("%w: empty ciphertext", ErrFormat)
	}
	ct, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	key, ok := p.ring.Key(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, id)
	}
	plain, err := p.enc.Decrypt(key, ct)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// AESGCMEncryptor is the default Encryptor: random nonce prepended to the
// sealed payload.
type AESGCMEncryptor struct{}

// Encrypt seals plaintext under key.
func (AESGCMEncryptor) Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a payload produced by Encrypt.
func (AESGCMEncryptor) Decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrDecryptionFailed
	}
	nonce, body := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}

// StaticKeyRing is an in-memory KeyRing. Rotate adds a key and makes it current;
// older keys stay available for Unprotect.
type StaticKeyRing struct {
	mu      sync.RWMutex
	current string
	keys    map[string][]byte
}

// NewStaticKeyRing returns a ring holding key as its current key.
func NewStaticKeyRing(id string, key []byte) (*StaticKeyRing, error) {
	r := &StaticKeyRing{keys: make(map[string][]byte)}
	if err := r.Rotate(id, key); err != nil {
		return nil, err
	}
	return r, nil
}

// Rotate installs key under id and makes it current.
func (r *StaticKeyRing) Rotate(id string, key []byte) error {
	if id == "" || strings.Contains(id, ":") {
		return fmt.Errorf("%w: key id must be non-empty and contain no ':'", ErrFormat)
	}
	if len(key) != KeySize {
		return ErrInvalidKey
	}
	k := make([]byte, len(key))
	copy(k, key)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[id] = k
	r.current = id
	return nil
}

// CurrentKeyID implements KeyRing.
func (r *StaticKeyRing) CurrentKeyID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Key implements KeyRing.
func (r *StaticKeyRing) Key(id string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	return k, ok
}
