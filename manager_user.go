package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

/*
====================================
USER LIFECYCLE
====================================
*/

// Create validates and stores a new user. A security stamp is assigned when
// the store keeps stamps, and lockout is enabled per
// Config.Lockout.AllowedForNewUsers.
func (m *Manager) Create(ctx context.Context, user *User) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}

	if m.caps.stamp != nil {
		stamp, err := m.caps.stamp.GetSecurityStamp(ctx, user)
		if err != nil {
			return Result{}, err
		}
		if stamp == "" {
			if err := m.rotateStamp(ctx, user); err != nil {
				return Result{}, err
			}
		}
	}
	if m.caps.lockout != nil && m.config.Lockout.AllowedForNewUsers {
		state, err := m.caps.lockout.GetLockout(ctx, user)
		if err != nil {
			return Result{}, err
		}
		state.Enabled = true
		if err := m.caps.lockout.SetLockout(ctx, user, state); err != nil {
			return Result{}, err
		}
	}

	m.normalize(user)
	failures, err := m.validateUser(ctx, user)
	if err != nil {
		return Result{}, err
	}
	if len(failures) > 0 {
		m.metricInc(MetricUserCreateRejected)
		return Failed(failures...), nil
	}

	if err := m.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			m.metricInc(MetricUserCreateRejected)
			return Failed(failureDuplicateUserName(user.UserName)), nil
		}
		return Result{}, fmt.Errorf("create user: %w", err)
	}

	m.metricInc(MetricUserCreated)
	m.emitAudit(ctx, auditEventUserCreated, true, user.ID, nil, nil)
	m.logger.InfoContext(ctx, "user created", attrUserID(user.ID))
	return Success(), nil
}

// CreateWithPassword validates password against the policy, hashes it, and
// creates user. Policy violations are reported before any user validation.
func (m *Manager) CreateWithPassword(ctx context.Context, user *User, password string) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.password == nil {
		return Result{}, notSupported("PasswordStore")
	}

	res, err := m.setPassword(ctx, user, password, true)
	if err != nil || !res.Succeeded {
		return res, err
	}
	return m.Create(ctx, user)
}

// Update validates and persists user.
func (m *Manager) Update(ctx context.Context, user *User) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	return m.updateUser(ctx, user)
}

// Delete removes user from the store.
func (m *Manager) Delete(ctx context.Context, user *User) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if err := m.store.Delete(ctx, user); err != nil {
		if errors.Is(err, ErrConcurrencyFailure) {
			m.metricInc(MetricConcurrencyFailure)
			return Failed(FailureConcurrency), nil
		}
		return Result{}, fmt.Errorf("delete user: %w", err)
	}
	m.emitAudit(ctx, auditEventUserDeleted, true, user.ID, nil, nil)
	return Success(), nil
}

// FindByID loads a user. Missing users yield ErrUserNotFound.
func (m *Manager) FindByID(ctx context.Context, userID string) (*User, error) {
	if err := m.ready(ctx, &User{}); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	return m.store.FindByID(ctx, userID)
}

// FindByName looks a user up by user name, normalized before the query.
func (m *Manager) FindByName(ctx context.Context, userName string) (*User, error) {
	if err := m.ready(ctx, &User{}); err != nil {
		return nil, err
	}
	if m.caps.lookup == nil {
		return nil, notSupported("UserLookupStore")
	}
	key := NormalizeKey(userName)
	if key == "" {
		return nil, ErrInvalidArgument
	}
	return m.caps.lookup.FindByName(ctx, key)
}

// FindByEmail looks a user up by email, normalized before the query.
func (m *Manager) FindByEmail(ctx context.Context, email string) (*User, error) {
	if err := m.ready(ctx, &User{}); err != nil {
		return nil, err
	}
	if m.caps.lookup == nil {
		return nil, notSupported("UserLookupStore")
	}
	key := NormalizeKey(email)
	if key == "" {
		return nil, ErrInvalidArgument
	}
	return m.caps.lookup.FindByEmail(ctx, key)
}

func (m *Manager) normalize(user *User) {
	user.NormalizedUserName = NormalizeKey(user.UserName)
	user.NormalizedEmail = NormalizeKey(user.Email)
}

/*
====================================
USER VALIDATION
====================================
*/

// validateUser returns every rule user breaks. Duplicate checks run only
// when the store supports lookups.
func (m *Manager) validateUser(ctx context.Context, user *User) ([]Failure, error) {
	var failures []Failure

	name := user.UserName
	if name == "" || !m.allowedUserName(name) {
		failures = append(failures, failureInvalidUserName(name))
	} else if m.caps.lookup != nil {
		owner, err := lookupOwner(ctx, m.caps.lookup.FindByName, NormalizeKey(name))
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.ID != user.ID {
			failures = append(failures, failureDuplicateUserName(name))
		}
	}

	if m.config.User.RequireUniqueEmail {
		email := user.Email
		if m.caps.email != nil {
			var err error
			if email, err = m.caps.email.GetEmail(ctx, user); err != nil {
				return nil, err
			}
		}
		if !validEmail(email) {
			failures = append(failures, failureInvalidEmail(email))
		} else if m.caps.lookup != nil {
			owner, err := lookupOwner(ctx, m.caps.lookup.FindByEmail, NormalizeKey(email))
			if err != nil {
				return nil, err
			}
			if owner != nil && owner.ID != user.ID {
				failures = append(failures, failureDuplicateEmail(email))
			}
		}
	}

	return failures, nil
}

func (m *Manager) allowedUserName(name string) bool {
	allowed := m.config.User.AllowedUserNameCharacters
	if allowed == "" {
		return true
	}
	for _, r := range name {
		if !strings.ContainsRune(allowed, r) {
			return false
		}
	}
	return true
}

// validEmail accepts exactly one '@' that is neither first nor last.
func validEmail(email string) bool {
	if email == "" || strings.TrimSpace(email) != email {
		return false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return strings.IndexByte(email[at+1:], '@') < 0
}

func lookupOwner(ctx context.Context, find func(context.Context, string) (*User, error), key string) (*User, error) {
	u, err := find(ctx, key)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}

/*
====================================
ROLES / CLAIMS
====================================
*/

// GetRoles returns the user's role names.
func (m *Manager) GetRoles(ctx context.Context, user *User) ([]string, error) {
	if err := m.ready(ctx, user); err != nil {
		return nil, err
	}
	if m.caps.roles == nil {
		return nil, notSupported("RoleStore")
	}
	return m.caps.roles.GetRoles(ctx, user)
}

// IsInRole compares role names case-insensitively.
func (m *Manager) IsInRole(ctx context.Context, user *User, role string) (bool, error) {
	roles, err := m.GetRoles(ctx, user)
	if err != nil {
		return false, err
	}
	return containsRole(roles, role), nil
}

// AddToRole adds user to role. Existing membership is reported as
// UserAlreadyInRole.
func (m *Manager) AddToRole(ctx context.Context, user *User, role string) (Result, error) {
	roles, err := m.GetRoles(ctx, user)
	if err != nil {
		return Result{}, err
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return Result{}, ErrInvalidArgument
	}
	if containsRole(roles, role) {
		return Failed(failureUserAlreadyInRole(role)), nil
	}
	if err := m.caps.roles.AddToRole(ctx, user, role); err != nil {
		return Result{}, err
	}
	m.logger.DebugContext(ctx, "role added", attrUserID(user.ID), slog.String("role", role))
	return Success(), nil
}

// RemoveFromRole removes user from role. Missing membership is reported as
// UserNotInRole.
func (m *Manager) RemoveFromRole(ctx context.Context, user *User, role string) (Result, error) {
	roles, err := m.GetRoles(ctx, user)
	if err != nil {
		return Result{}, err
	}
	role = strings.TrimSpace(role)
	if !containsRole(roles, role) {
		return Failed(failureUserNotInRole(role)), nil
	}
	if err := m.caps.roles.RemoveFromRole(ctx, user, role); err != nil {
		return Result{}, err
	}
	return Success(), nil
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// GetClaims returns the claims stored for user.
func (m *Manager) GetClaims(ctx context.Context, user *User) ([]Claim, error) {
	if err := m.ready(ctx, user); err != nil {
		return nil, err
	}
	if m.caps.claims == nil {
		return nil, notSupported("ClaimStore")
	}
	return m.caps.claims.GetClaims(ctx, user)
}

// AddClaims stores claims for user.
func (m *Manager) AddClaims(ctx context.Context, user *User, claims ...Claim) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.claims == nil {
		return Result{}, notSupported("ClaimStore")
	}
	for _, c := range claims {
		if c.Type == "" {
			return Result{}, fmt.Errorf("%w: claim type is empty", ErrInvalidArgument)
		}
	}
	if err := m.caps.claims.AddClaims(ctx, user, claims); err != nil {
		return Result{}, err
	}
	return Success(), nil
}

// RemoveClaims deletes matching claims of user.
func (m *Manager) RemoveClaims(ctx context.Context, user *User, claims ...Claim) (Result, error) {
	if err := m.ready(ctx, user); err != nil {
		return Result{}, err
	}
	if m.caps.claims == nil {
		return Result{}, notSupported("ClaimStore")
	}
	if err := m.caps.claims.RemoveClaims(ctx, user, claims); err != nil {
		return Result{}, err
	}
	return Success(), nil
}
