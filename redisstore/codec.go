package redisstore

import (
	"errors"
	"strconv"
	"strings"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
)

const (
	fieldID                   = "id"
	fieldUserName             = "user_name"
	fieldNormalizedUserName   = "normalized_user_name"
	fieldEmail                = "email"
	fieldNormalizedEmail      = "normalized_email"
	fieldEmailConfirmed       = "email_confirmed"
	fieldPhoneNumber          = "phone_number"
	fieldPhoneNumberConfirmed = "phone_number_confirmed"
	fieldPasswordHash         = "password_hash"
	fieldSecurityStamp        = "security_stamp"
	fieldConcurrencyStamp     = "concurrency_stamp"
	fieldTwoFactorEnabled     = "two_factor_enabled"
	fieldAuthenticatorKey     = "authenticator_key"
	fieldLockoutEnabled       = "lockout_enabled"
	fieldLockoutEnd           = "lockout_end"
	fieldAccessFailedCount    = "access_failed_count"
)

var errCorruptUser = errors.New("redisstore: corrupt user record")

func encodeUser(u *goIdentity.User) map[string]any {
	end := ""
	if u.LockoutEnd != nil {
		end = strconv.FormatInt(u.LockoutEnd.UnixNano(), 10)
	}
	return map[string]any{
		fieldID:                   u.ID,
		fieldUserName:             u.UserName,
		fieldNormalizedUserName:   u.NormalizedUserName,
		fieldEmail:                u.Email,
		fieldNormalizedEmail:      u.NormalizedEmail,
		fieldEmailConfirmed:       boolField(u.EmailConfirmed),
		fieldPhoneNumber:          u.PhoneNumber,
		fieldPhoneNumberConfirmed: boolField(u.PhoneNumberConfirmed),
		fieldPasswordHash:         u.PasswordHash,
		fieldSecurityStamp:        u.SecurityStamp,
		fieldConcurrencyStamp:     u.ConcurrencyStamp,
		fieldTwoFactorEnabled:     boolField(u.TwoFactorEnabled),
		fieldAuthenticatorKey:     u.AuthenticatorKey,
		fieldLockoutEnabled:       boolField(u.LockoutEnabled),
		fieldLockoutEnd:           end,
		fieldAccessFailedCount:    strconv.Itoa(u.AccessFailedCount),
	}
}

func decodeUser(h map[string]string) (*goIdentity.User, error) {
	if h[fieldID] == "" {
		return nil, errCorruptUser
	}
	u := &goIdentity.User{
		ID:                   h[fieldID],
		UserName:             h[fieldUserName],
		NormalizedUserName:   h[fieldNormalizedUserName],
		Email:                h[fieldEmail],
		NormalizedEmail:      h[fieldNormalizedEmail],
		EmailConfirmed:       h[fieldEmailConfirmed] == "1",
		PhoneNumber:          h[fieldPhoneNumber],
		PhoneNumberConfirmed: h[fieldPhoneNumberConfirmed] == "1",
		PasswordHash:         h[fieldPasswordHash],
		SecurityStamp:        h[fieldSecurityStamp],
		ConcurrencyStamp:     h[fieldConcurrencyStamp],
		TwoFactorEnabled:     h[fieldTwoFactorEnabled] == "1",
		AuthenticatorKey:     h[fieldAuthenticatorKey],
		LockoutEnabled:       h[fieldLockoutEnabled] == "1",
	}
	if v := h[fieldLockoutEnd]; v != "" {
		ns, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errCorruptUser
		}
		end := time.Unix(0, ns).UTC()
		u.LockoutEnd = &end
	}
	if v := h[fieldAccessFailedCount]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errCorruptUser
		}
		u.AccessFailedCount = n
	}
	return u, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

const claimSeparator = "\x00"

func encodeClaim(c goIdentity.Claim) string {
	return c.Type + claimSeparator + c.Value
}

func decodeClaim(s string) (goIdentity.Claim, bool) {
	typ, value, ok := strings.Cut(s, claimSeparator)
	if !ok {
		return goIdentity.Claim{}, false
	}
	return goIdentity.Claim{Type: typ, Value: value}, true
}
