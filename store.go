package goIdentity

import "context"

// UserStore is the one capability every backing store must provide.
// Update persists every field of the user value; implementations should
// compare ConcurrencyStamp, return ErrConcurrencyFailure on mismatch, and
// assign a fresh stamp on success.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, user *User) error
	FindByID(ctx context.Context, userID string) (*User, error)
}

// UserLookupStore finds users by normalized user name or email. Both return
// ErrUserNotFound when nothing matches.
type UserLookupStore interface {
	FindByName(ctx context.Context, normalizedUserName string) (*User, error)
	FindByEmail(ctx context.Context, normalizedEmail string) (*User, error)
}

// The field capabilities below read and write the in-memory user value;
// changes become durable on the next UserStore.Update.

// PasswordStore gives access to the password hash.
type PasswordStore interface {
	GetPasswordHash(ctx context.Context, user *User) (string, error)
	SetPasswordHash(ctx context.Context, user *User, hash string) error
}

// SecurityStampStore gives access to the security stamp.
type SecurityStampStore interface {
	GetSecurityStamp(ctx context.Context, user *User) (string, error)
	SetSecurityStamp(ctx context.Context, user *User, stamp string) error
}

// EmailStore gives access to the email address and its confirmation flag.
type EmailStore interface {
	GetEmail(ctx context.Context, user *User) (string, error)
	SetEmail(ctx context.Context, user *User, email string) error
	GetEmailConfirmed(ctx context.Context, user *User) (bool, error)
	SetEmailConfirmed(ctx context.Context, user *User, confirmed bool) error
}

// PhoneNumberStore gives access to the phone number and its confirmation flag.
type PhoneNumberStore interface {
	GetPhoneNumber(ctx context.Context, user *User) (string, error)
	SetPhoneNumber(ctx context.Context, user *User, phone string) error
	GetPhoneNumberConfirmed(ctx context.Context, user *User) (bool, error)
	SetPhoneNumberConfirmed(ctx context.Context, user *User, confirmed bool) error
}

// LockoutStore gives access to the lockout record.
type LockoutStore interface {
	GetLockout(ctx context.Context, user *User) (LockoutState, error)
	SetLockout(ctx context.Context, user *User, state LockoutState) error
}

// AccessFailedCounter increments the persisted failure counter atomically,
// updates user, and returns the new count. Stores that implement it make
// concurrent AccessFailed calls lossless.
type AccessFailedCounter interface {
	IncrementAccessFailedCount(ctx context.Context, user *User) (int, error)
}

// AuthenticatorKeyStore gives access to the authenticator shared secret.
type AuthenticatorKeyStore interface {
	GetAuthenticatorKey(ctx context.Context, user *User) (string, error)
	SetAuthenticatorKey(ctx context.Context, user *User, key string) error
}

// TwoFactorStore gives access to the two-factor flag.
type TwoFactorStore interface {
	GetTwoFactorEnabled(ctx context.Context, user *User) (bool, error)
	SetTwoFactorEnabled(ctx context.Context, user *User, enabled bool) error
}

// RecoveryCodeStore holds recovery code digests. Replace persists immediately
// and discards every previous digest.
type RecoveryCodeStore interface {
	GetRecoveryCodes(ctx context.Context, user *User) ([]string, error)
	ReplaceRecoveryCodes(ctx context.Context, user *User, digests []string) error
}

// RecoveryCodeRedeemer removes one digest if present, atomically, and reports
// whether it was removed.
type RecoveryCodeRedeemer interface {
	RedeemRecoveryCode(ctx context.Context, user *User, digest string) (bool, error)
}

// RoleStore persists role membership immediately.
type RoleStore interface {
	GetRoles(ctx context.Context, user *User) ([]string, error)
	AddToRole(ctx context.Context, user *User, role string) error
	RemoveFromRole(ctx context.Context, user *User, role string) error
}

// ClaimStore persists user claims immediately.
type ClaimStore interface {
	GetClaims(ctx context.Context, user *User) ([]Claim, error)
	AddClaims(ctx context.Context, user *User, claims []Claim) error
	RemoveClaims(ctx context.Context, user *User, claims []Claim) error
}

// FieldStore implements every field capability over the User struct itself.
// Stores that persist whole User values embed it.
type FieldStore struct{}

func (FieldStore) GetPasswordHash(_ context.Context, u *User) (string, error) {
	return u.PasswordHash, nil
}

func (FieldStore) SetPasswordHash(_ context.Context, u *User, hash string) error {
	u.PasswordHash = hash
	return nil
}

func (FieldStore) GetSecurityStamp(_ context.Context, u *User) (string, error) {
	return u.SecurityStamp, nil
}

func (FieldStore) SetSecurityStamp(_ context.Context, u *User, stamp string) error {
	u.SecurityStamp = stamp
	return nil
}

func (FieldStore) GetEmail(_ context.Context, u *User) (string, error) {
	return u.Email, nil
}

func (FieldStore) SetEmail(_ context.Context, u *User, email string) error {
	u.Email = email
	return nil
}

func (FieldStore) GetEmailConfirmed(_ context.Context, u *User) (bool, error) {
	return u.EmailConfirmed, nil
}

func (FieldStore) SetEmailConfirmed(_ context.Context, u *User, confirmed bool) error {
	u.EmailConfirmed = confirmed
	return nil
}

func (FieldStore) GetPhoneNumber(_ context.Context, u *User) (string, error) {
	return u.PhoneNumber, nil
}

func (FieldStore) SetPhoneNumber(_ context.Context, u *User, phone string) error {
	u.PhoneNumber = phone
	return nil
}

func (FieldStore) GetPhoneNumberConfirmed(_ context.Context, u *User) (bool, error) {
	return u.PhoneNumberConfirmed, nil
}

func (FieldStore) SetPhoneNumberConfirmed(_ context.Context, u *User, confirmed bool) error {
	u.PhoneNumberConfirmed = confirmed
	return nil
}

func (FieldStore) GetLockout(_ context.Context, u *User) (LockoutState, error) {
	var end = u.LockoutEnd
	if end != nil {
		e := *end
		end = &e
	}
	return LockoutState{FailedAccessCount: u.AccessFailedCount, End: end, Enabled: u.LockoutEnabled}, nil
}

func (FieldStore) SetLockout(_ context.Context, u *User, s LockoutState) error {
	u.AccessFailedCount = s.FailedAccessCount
	u.LockoutEnd = s.End
	u.LockoutEnabled = s.Enabled
	return nil
}

func (FieldStore) GetAuthenticatorKey(_ context.Context, u *User) (string, error) {
	return u.AuthenticatorKey, nil
}

func (FieldStore) SetAuthenticatorKey(_ context.Context, u *User, key string) error {
	u.AuthenticatorKey = key
	return nil
}

func (FieldStore) GetTwoFactorEnabled(_ context.Context, u *User) (bool, error) {
	return u.TwoFactorEnabled, nil
}

func (FieldStore) SetTwoFactorEnabled(_ context.Context, u *User, enabled bool) error {
	u.TwoFactorEnabled = enabled
	return nil
}
