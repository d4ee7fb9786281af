package goIdentity

import (
	"strings"
	"time"
)

// User is the single concrete account representation. Stores persist it; the
// Manager reads and writes credential fields only through store capabilities.
type User struct {
	ID                   string
	UserName             string
	NormalizedUserName   string
	Email                string
	NormalizedEmail      string
	EmailConfirmed       bool
	PhoneNumber          string
	PhoneNumberConfirmed bool
	PasswordHash         string
	SecurityStamp        string
	ConcurrencyStamp     string
	TwoFactorEnabled     bool
	AuthenticatorKey     string
	LockoutEnabled       bool
	LockoutEnd           *time.Time
	AccessFailedCount    int
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.LockoutEnd != nil {
		end := *u.LockoutEnd
		out.LockoutEnd = &end
	}
	return &out
}

// LockoutState is the persisted failed-access record of a user.
type LockoutState struct {
	FailedAccessCount int
	End               *time.Time
	Enabled           bool
}

// Claim is a typed statement about a user carried by a Principal.
type Claim struct {
	Type  string
	Value string
}

// Claim types emitted by the claims factory.
const (
	ClaimTypeUserID        = "sub"
	ClaimTypeUserName      = "name"
	ClaimTypeEmail         = "email"
	ClaimTypeRole          = "role"
	ClaimTypeSecurityStamp = "security_stamp"
)

// Principal is an authenticated identity built from a user's claims at a
// point in time. Long-lived holders revalidate it with
// Manager.ValidateSecurityStamp.
type Principal struct {
	Claims   []Claim
	IssuedAt time.Time
}

// FindFirst returns the first claim value of typ.
func (p *Principal) FindFirst(typ string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, c := range p.Claims {
		if c.Type == typ {
			return c.Value, true
		}
	}
	return "", false
}

// UserID returns the user ID claim.
func (p *Principal) UserID() string {
	v, _ := p.FindFirst(ClaimTypeUserID)
	return v
}

// Roles returns every role claim value.
func (p *Principal) Roles() []string {
	if p == nil {
		return nil
	}
	var out []string
	for _, c := range p.Claims {
		if c.Type == ClaimTypeRole {
			out = append(out, c.Value)
		}
	}
	return out
}

// IsInRole reports whether the principal carries role.
func (p *Principal) IsInRole(role string) bool {
	for _, r := range p.Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeKey is the default lookup normalizer: trimmed and upper-cased.
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
