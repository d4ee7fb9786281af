package goIdentity

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/dataprotect"
)

const dataProtectorPurpose = "DataProtectorTokenProvider"

// DataProtectorTokenProvider issues opaque encrypted tokens binding issue
// time, user ID, purpose and security stamp. It never produces two-factor
// codes.
type DataProtectorTokenProvider struct {
	protector *dataprotect.Protector
	lifespan  time.Duration
}

// NewDataProtectorTokenProvider derives the provider's protector from
// protector and bounds token age by lifespan.
func NewDataProtectorTokenProvider(protector *dataprotect.Protector, lifespan time.Duration) (*DataProtectorTokenProvider, error) {
	if protector == nil {
		return nil, fmt.Errorf("%w: nil protector", ErrInvalidArgument)
	}
	if lifespan <= 0 {
		return nil, fmt.Errorf("%w: token lifespan must be > 0", ErrInvalidArgument)
	}
	p, err := protector.CreateProtector(dataProtectorPurpose)
	if err != nil {
		return nil, err
	}
	return &DataProtectorTokenProvider{protector: p, lifespan: lifespan}, nil
}

func (p *DataProtectorTokenProvider) CanGenerateTwoFactorToken(context.Context, TokenSource, *User) (bool, error) {
	return false, nil
}

func (p *DataProtectorTokenProvider) Generate(ctx context.Context, purpose string, src TokenSource, user *User) (string, error) {
	if user == nil {
		return "", ErrNilUser
	}
	stamp, err := optionalStamp(ctx, src, user)
	if err != nil {
		return "", err
	}
	payload := encodeTokenPayload(tokenPayload{
		Created: src.Now().Unix(),
		UserID:  user.ID,
		Purpose: purpose,
		Stamp:   stamp,
	})
	protected, err := p.protector.Protect(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(protected), nil
}

func (p *DataProtectorTokenProvider) Validate(ctx context.Context, purpose, token string, src TokenSource, user *User) (bool, error) {
	if user == nil {
		return false, ErrNilUser
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false, nil
	}
	plain, err := p.protector.Unprotect(raw)
	if err != nil {
		return false, nil
	}
	tp, err := decodeTokenPayload(plain)
	if err != nil {
		return false, nil
	}

	created := time.Unix(tp.Created, 0)
	if src.Now().After(created.Add(p.lifespan)) {
		return false, nil
	}
	if tp.UserID != user.ID || tp.Purpose != purpose {
		return false, nil
	}
	stamp, err := optionalStamp(ctx, src, user)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(tp.Stamp), []byte(stamp)) == 1, nil
}

type tokenPayload struct {
	Created int64
	UserID  string
	Purpose string
	Stamp   string
}

var errPayload = errors.New("malformed token payload")

// encodeTokenPayload writes created (8 bytes big-endian) followed by three
// uvarint length-prefixed strings.
func encodeTokenPayload(tp tokenPayload) []byte {
	out := make([]byte, 8, 8+len(tp.UserID)+len(tp.Purpose)+len(tp.Stamp)+3*binary.MaxVarintLen64)
	binary.BigEndian.PutUint64(out, uint64(tp.Created))
	for _, s := range []string{tp.UserID, tp.Purpose, tp.Stamp} {
		out = binary.AppendUvarint(out, uint64(len(s)))
		out = append(out, s...)
	}
	return out
}

func decodeTokenPayload(b []byte) (tokenPayload, error) {
	if len(b) < 8 {
		return tokenPayload{}, errPayload
	}
	tp := tokenPayload{Created: int64(binary.BigEndian.Uint64(b[:8]))}
	rest := b[8:]
	var fields [3]string
	for i := range fields {
		n, read := binary.Uvarint(rest)
		if read <= 0 || n > uint64(len(rest)-read) {
			return tokenPayload{}, errPayload
		}
		rest = rest[read:]
		fields[i] = string(rest[:n])
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return tokenPayload{}, errPayload
	}
	tp.UserID, tp.Purpose, tp.Stamp = fields[0], fields[1], fields[2]
	return tp, nil
}
