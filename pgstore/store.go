// Package pgstore is a goIdentity store on PostgreSQL through pgx.
//
// Optimistic concurrency is a conditional UPDATE on concurrency_stamp. The
// failure counter uses UPDATE ... RETURNING and recovery codes are redeemed
// with a single DELETE, so both are atomic without explicit transactions.
// Apply the schema with Migrate before first use.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, user_name, normalized_user_name, email, normalized_email,
	email_confirmed, phone_number, phone_number_confirmed, password_hash,
	security_stamp, concurrency_stamp, two_factor_enabled, authenticator_key,
	lockout_enabled, lockout_end, access_failed_count`

// Store implements every goIdentity store capability.
type Store struct {
	goIdentity.FieldStore

	pool *pgxpool.Pool
}

// New returns a store over pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func dbError(op string, err error) error {
	return fmt.Errorf("pgstore: %s: %w", op, err)
}

/*
====================================
USER STORE
====================================
*/

// Create assigns an ID when empty and a fresh concurrency stamp.
func (s *Store) Create(ctx context.Context, user *goIdentity.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	stamp := uuid.NewString()

	_, err := s.pool.Exec(ctx, `INSERT INTO identity_users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		user.ID, user.UserName, user.NormalizedUserName, user.Email, user.NormalizedEmail,
		user.EmailConfirmed, user.PhoneNumber, user.PhoneNumberConfirmed, user.PasswordHash,
		user.SecurityStamp, stamp, user.TwoFactorEnabled, user.AuthenticatorKey,
		user.LockoutEnabled, user.LockoutEnd, user.AccessFailedCount,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %v", goIdentity.ErrDuplicateUser, err)
		}
		return dbError("create user", err)
	}
	user.ConcurrencyStamp = stamp
	return nil
}

// Update writes every field when the stored concurrency stamp matches.
func (s *Store) Update(ctx context.Context, user *goIdentity.User) error {
	stamp := uuid.NewString()

	tag, err := s.pool.Exec(ctx, `UPDATE identity_users SET
			user_name = $3, normalized_user_name = $4, email = $5, normalized_email = $6,
			email_confirmed = $7, phone_number = $8, phone_number_confirmed = $9,
			password_hash = $10, security_stamp = $11, concurrency_stamp = $12,
			two_factor_enabled = $13, authenticator_key = $14, lockout_enabled = $15,
			lockout_end = $16, access_failed_count = $17
		WHERE id = $1 AND concurrency_stamp = $2`,
		user.ID, user.ConcurrencyStamp,
		user.UserName, user.NormalizedUserName, user.Email, user.NormalizedEmail,
		user.EmailConfirmed, user.PhoneNumber, user.PhoneNumberConfirmed,
		user.PasswordHash, user.SecurityStamp, stamp,
		user.TwoFactorEnabled, user.AuthenticatorKey, user.LockoutEnabled,
		user.LockoutEnd, user.AccessFailedCount,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %v", goIdentity.ErrDuplicateUser, err)
		}
		return dbError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, user.ID)
	}
	user.ConcurrencyStamp = stamp
	return nil
}

// Delete removes the user; recovery codes, roles and claims cascade.
func (s *Store) Delete(ctx context.Context, user *goIdentity.User) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM identity_users WHERE id = $1 AND concurrency_stamp = $2`,
		user.ID, user.ConcurrencyStamp)
	if err != nil {
		return dbError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, user.ID)
	}
	return nil
}

func (s *Store) missOrConflict(ctx context.Context, userID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM identity_users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return dbError("check user", err)
	}
	if !exists {
		return goIdentity.ErrUserNotFound
	}
	return goIdentity.ErrConcurrencyFailure
}

func (s *Store) FindByID(ctx context.Context, userID string) (*goIdentity.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM identity_users WHERE id = $1`, userID)
}

func (s *Store) FindByName(ctx context.Context, normalizedUserName string) (*goIdentity.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM identity_users WHERE normalized_user_name = $1`, normalizedUserName)
}

// FindByEmail returns the lowest ID when emails are not unique.
func (s *Store) FindByEmail(ctx context.Context, normalizedEmail string) (*goIdentity.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM identity_users
		WHERE normalized_email = $1 ORDER BY id LIMIT 1`, normalizedEmail)
}

func (s *Store) findOne(ctx context.Context, query string, arg string) (*goIdentity.User, error) {
	u := &goIdentity.User{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.UserName, &u.NormalizedUserName, &u.Email, &u.NormalizedEmail,
		&u.EmailConfirmed, &u.PhoneNumber, &u.PhoneNumberConfirmed, &u.PasswordHash,
		&u.SecurityStamp, &u.ConcurrencyStamp, &u.TwoFactorEnabled, &u.AuthenticatorKey,
		&u.LockoutEnabled, &u.LockoutEnd, &u.AccessFailedCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, goIdentity.ErrUserNotFound
	}
	if err != nil {
		return nil, dbError("find user", err)
	}
	return u, nil
}

/*
====================================
ATOMIC PRIMITIVES
====================================
*/

// IncrementAccessFailedCount leaves concurrency_stamp unchanged.
func (s *Store) IncrementAccessFailedCount(ctx context.Context, user *goIdentity.User) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `UPDATE identity_users
		SET access_failed_count = access_failed_count + 1
		WHERE id = $1 RETURNING access_failed_count`, user.ID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, goIdentity.ErrUserNotFound
	}
	if err != nil {
		return 0, dbError("increment access failed count", err)
	}
	user.AccessFailedCount = n
	return n, nil
}

func (s *Store) GetRecoveryCodes(ctx context.Context, user *goIdentity.User) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT digest FROM identity_recovery_codes WHERE user_id = $1 ORDER BY digest`, user.ID)
	if err != nil {
		return nil, dbError("get recovery codes", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, dbError("get recovery codes", err)
	}
	return codes, nil
}

func (s *Store) ReplaceRecoveryCodes(ctx context.Context, user *goIdentity.User, digests []string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM identity_recovery_codes WHERE user_id = $1`, user.ID); err != nil {
			return err
		}
		if len(digests) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, d := range digests {
			batch.Queue(`INSERT INTO identity_recovery_codes (user_id, digest) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, user.ID, d)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return dbError("replace recovery codes", err)
	}
	return nil
}

// RedeemRecoveryCode deletes the digest row; only one caller sees a row.
func (s *Store) RedeemRecoveryCode(ctx context.Context, user *goIdentity.User, digest string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM identity_recovery_codes WHERE user_id = $1 AND digest = $2`, user.ID, digest)
	if err != nil {
		return false, dbError("redeem recovery code", err)
	}
	return tag.RowsAffected() == 1, nil
}

/*
====================================
ROLES / CLAIMS
====================================
*/

func (s *Store) GetRoles(ctx context.Context, user *goIdentity.User) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role FROM identity_user_roles WHERE user_id = $1 ORDER BY normalized_role`, user.ID)
	if err != nil {
		return nil, dbError("get roles", err)
	}
	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, dbError("get roles", err)
	}
	return roles, nil
}

func (s *Store) AddToRole(ctx context.Context, user *goIdentity.User, role string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO identity_user_roles (user_id, role, normalized_role)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, user.ID, role, goIdentity.NormalizeKey(role))
	if err != nil {
		return dbError("add role", err)
	}
	return nil
}

func (s *Store) RemoveFromRole(ctx context.Context, user *goIdentity.User, role string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM identity_user_roles
		WHERE user_id = $1 AND normalized_role = $2`, user.ID, goIdentity.NormalizeKey(role))
	if err != nil {
		return dbError("remove role", err)
	}
	return nil
}

func (s *Store) GetClaims(ctx context.Context, user *goIdentity.User) ([]goIdentity.Claim, error) {
	rows, err := s.pool.Query(ctx, `SELECT claim_type, claim_value FROM identity_user_claims
		WHERE user_id = $1 ORDER BY claim_type, claim_value`, user.ID)
	if err != nil {
		return nil, dbError("get claims", err)
	}
	claims, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (goIdentity.Claim, error) {
		var c goIdentity.Claim
		err := row.Scan(&c.Type, &c.Value)
		return c, err
	})
	if err != nil {
		return nil, dbError("get claims", err)
	}
	return claims, nil
}

func (s *Store) AddClaims(ctx context.Context, user *goIdentity.User, claims []goIdentity.Claim) error {
	return s.claimBatch(ctx, "add claims", `INSERT INTO identity_user_claims (user_id, claim_type, claim_value)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, user.ID, claims)
}

func (s *Store) RemoveClaims(ctx context.Context, user *goIdentity.User, claims []goIdentity.Claim) error {
	return s.claimBatch(ctx, "remove claims", `DELETE FROM identity_user_claims
		WHERE user_id = $1 AND claim_type = $2 AND claim_value = $3`, user.ID, claims)
}

func (s *Store) claimBatch(ctx context.Context, op, query, userID string, claims []goIdentity.Claim) error {
	if len(claims) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range claims {
		batch.Queue(strings.TrimSpace(query), userID, c.Type, c.Value)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return dbError(op, err)
	}
	return nil
}

var (
	_ goIdentity.UserStore            = (*Store)(nil)
	_ goIdentity.UserLookupStore      = (*Store)(nil)
	_ goIdentity.AccessFailedCounter  = (*Store)(nil)
	_ goIdentity.RecoveryCodeRedeemer = (*Store)(nil)
	_ goIdentity.RoleStore            = (*Store)(nil)
	_ goIdentity.ClaimStore           = (*Store)(nil)
)
