// Package memstore is an in-memory goIdentity store implementing every
// capability. It is meant for tests, examples and single-process tools.
//
// Reads return copies, so a *User held by a caller is never changed by
// another goroutine. Update enforces optimistic concurrency on
// ConcurrencyStamp.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/google/uuid"
)

// Store is safe for concurrent use.
type Store struct {
	goIdentity.FieldStore

	mu       sync.RWMutex
	users    map[string]*goIdentity.User
	recovery map[string][]string
	roles    map[string][]string
	claims   map[string][]goIdentity.Claim
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]*goIdentity.User),
		recovery: make(map[string][]string),
		roles:    make(map[string][]string),
		claims:   make(map[string][]goIdentity.Claim),
	}
}

/*
====================================
USER STORE
====================================
*/

// Create assigns an ID when empty and a fresh concurrency stamp.
func (s *Store) Create(ctx context.Context, user *goIdentity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("%w: id %s", goIdentity.ErrDuplicateUser, user.ID)
	}
	for _, u := range s.users {
		if user.NormalizedUserName != "" && u.NormalizedUserName == user.NormalizedUserName {
			return fmt.Errorf("%w: user name", goIdentity.ErrDuplicateUser)
		}
	}

	user.ConcurrencyStamp = uuid.NewString()
	s.users[user.ID] = user.Clone()
	return nil
}

// Update replaces the stored user when ConcurrencyStamp matches.
func (s *Store) Update(ctx context.Context, user *goIdentity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return goIdentity.ErrUserNotFound
	}
	if stored.ConcurrencyStamp != user.ConcurrencyStamp {
		return goIdentity.ErrConcurrencyFailure
	}
	user.ConcurrencyStamp = uuid.NewString()
	s.users[user.ID] = user.Clone()
	return nil
}

// Delete removes the user and everything attached to it.
func (s *Store) Delete(ctx context.Context, user *goIdentity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return goIdentity.ErrUserNotFound
	}
	if stored.ConcurrencyStamp != user.ConcurrencyStamp {
		return goIdentity.ErrConcurrencyFailure
	}
	delete(s.users, user.ID)
	delete(s.recovery, user.ID)
	delete(s.roles, user.ID)
	delete(s.claims, user.ID)
	return nil
}

func (s *Store) FindByID(ctx context.Context, userID string) (*goIdentity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, goIdentity.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *Store) FindByName(ctx context.Context, normalizedUserName string) (*goIdentity.User, error) {
	return s.findBy(ctx, func(u *goIdentity.User) bool {
		return u.NormalizedUserName == normalizedUserName
	})
}

// FindByEmail returns the first match when emails are not unique.
func (s *Store) FindByEmail(ctx context.Context, normalizedEmail string) (*goIdentity.User, error) {
	return s.findBy(ctx, func(u *goIdentity.User) bool {
		return u.NormalizedEmail == normalizedEmail
	})
}

func (s *Store) findBy(ctx context.Context, match func(*goIdentity.User) bool) (*goIdentity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, goIdentity.ErrUserNotFound
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

/*
====================================
ATOMIC PRIMITIVES
====================================
*/

// IncrementAccessFailedCount bumps the stored counter without touching the
// concurrency stamp and mirrors the new value onto user.
func (s *Store) IncrementAccessFailedCount(ctx context.Context, user *goIdentity.User) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return 0, goIdentity.ErrUserNotFound
	}
	stored.AccessFailedCount++
	user.AccessFailedCount = stored.AccessFailedCount
	return stored.AccessFailedCount, nil
}

func (s *Store) GetRecoveryCodes(ctx context.Context, user *goIdentity.User) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.recovery[user.ID]), nil
}

func (s *Store) ReplaceRecoveryCodes(ctx context.Context, user *goIdentity.User, digests []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return goIdentity.ErrUserNotFound
	}
	s.recovery[user.ID] = slices.Clone(digests)
	return nil
}

// RedeemRecoveryCode removes digest under the store lock, so each digest is
// redeemed at most once.
func (s *Store) RedeemRecoveryCode(ctx context.Context, user *goIdentity.User, digest string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := s.recovery[user.ID]
	idx := slices.Index(codes, digest)
	if idx < 0 {
		return false, nil
	}
	s.recovery[user.ID] = slices.Delete(slices.Clone(codes), idx, idx+1)
	return true, nil
}

/*
====================================
ROLES / CLAIMS
====================================
*/

func (s *Store) GetRoles(ctx context.Context, user *goIdentity.User) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.roles[user.ID]), nil
}

func (s *Store) AddToRole(ctx context.Context, user *goIdentity.User, role string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.roles[user.ID] {
		if strings.EqualFold(r, role) {
			return nil
		}
	}
	s.roles[user.ID] = append(s.roles[user.ID], role)
	return nil
}

func (s *Store) RemoveFromRole(ctx context.Context, user *goIdentity.User, role string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles[user.ID] = slices.DeleteFunc(slices.Clone(s.roles[user.ID]), func(r string) bool {
		return strings.EqualFold(r, role)
	})
	return nil
}

func (s *Store) GetClaims(ctx context.Context, user *goIdentity.User) ([]goIdentity.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.claims[user.ID]), nil
}

func (s *Store) AddClaims(ctx context.Context, user *goIdentity.User, claims []goIdentity.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range claims {
		if !slices.Contains(s.claims[user.ID], c) {
			s.claims[user.ID] = append(s.claims[user.ID], c)
		}
	}
	return nil
}

func (s *Store) RemoveClaims(ctx context.Context, user *goIdentity.User, claims []goIdentity.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims[user.ID] = slices.DeleteFunc(slices.Clone(s.claims[user.ID]), func(c goIdentity.Claim) bool {
		return slices.Contains(claims, c)
	})
	return nil
}

var (
	_ goIdentity.UserStore             = (*Store)(nil)
	_ goIdentity.UserLookupStore       = (*Store)(nil)
	_ goIdentity.PasswordStore         = (*Store)(nil)
	_ goIdentity.SecurityStampStore    = (*Store)(nil)
	_ goIdentity.EmailStore            = (*Store)(nil)
	_ goIdentity.PhoneNumberStore      = (*Store)(nil)
	_ goIdentity.LockoutStore          = (*Store)(nil)
	_ goIdentity.AccessFailedCounter   = (*Store)(nil)
	_ goIdentity.AuthenticatorKeyStore = (*Store)(nil)
	_ goIdentity.TwoFactorStore        = (*Store)(nil)
	_ goIdentity.RecoveryCodeStore     = (*Store)(nil)
	_ goIdentity.RecoveryCodeRedeemer  = (*Store)(nil)
	_ goIdentity.RoleStore             = (*Store)(nil)
	_ goIdentity.ClaimStore            = (*Store)(nil)
)
