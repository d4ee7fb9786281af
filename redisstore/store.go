// Package redisstore is a goIdentity store on Redis. Each user is a hash;
// name and email indexes, recovery code digests, roles and claims live in
// sibling keys under the same prefix.
//
// Update and Delete run in WATCH/MULTI transactions that compare the
// concurrency stamp. The failure counter is a single HINCRBY and recovery
// codes are redeemed with SREM, so both are atomic without a transaction.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures.
var ErrRedisUnavailable = errors.New("redisstore: redis unavailable")

const maxTxRetries = 4

// incrementScript bumps the counter only when the user hash exists.
const incrementScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
`

var incrementLua = redis.NewScript(incrementScript)

// Store implements every goIdentity store capability.
type Store struct {
	goIdentity.FieldStore

	redis  redis.UniversalClient
	prefix string
}

// New returns a store using prefix for every key; "" means "gid".
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "gid"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) userKey(id string) string          { return s.prefix + ":user:" + id }
func (s *Store) nameKey(normalized string) string  { return s.prefix + ":name:" + normalized }
func (s *Store) emailKey(normalized string) string { return s.prefix + ":email:" + normalized }
func (s *Store) recoveryKey(id string) string      { return s.prefix + ":rc:" + id }
func (s *Store) rolesKey(id string) string         { return s.prefix + ":roles:" + id }
func (s *Store) claimsKey(id string) string        { return s.prefix + ":claims:" + id }

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

/*
====================================
USER STORE
====================================
*/

// Create assigns an ID when empty and a fresh concurrency stamp. It fails
// with ErrDuplicateUser when the ID or normalized user name is taken.
func (s *Store) Create(ctx context.Context, user *goIdentity.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	key := s.userKey(user.ID)
	watch := []string{key}
	if user.NormalizedUserName != "" {
		watch = append(watch, s.nameKey(user.NormalizedUserName))
	}

	stamp := uuid.NewString()
	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, watch...).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return goIdentity.ErrDuplicateUser
			}

			record := user.Clone()
			record.ConcurrencyStamp = stamp
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, encodeUser(record))
				s.writeIndexes(ctx, pipe, nil, record)
				return nil
			})
			return err
		}, watch...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, goIdentity.ErrDuplicateUser) {
			return err
		}
		if err != nil {
			return unavailable(err)
		}
		user.ConcurrencyStamp = stamp
		return nil
	}
	return goIdentity.ErrConcurrencyFailure
}

// Update writes every field when the stored concurrency stamp matches.
func (s *Store) Update(ctx context.Context, user *goIdentity.User) error {
	key := s.userKey(user.ID)
	stamp := uuid.NewString()

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if current.ConcurrencyStamp != user.ConcurrencyStamp {
			return goIdentity.ErrConcurrencyFailure
		}

		record := user.Clone()
		record.ConcurrencyStamp = stamp
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeUser(record))
			s.writeIndexes(ctx, pipe, current, record)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		user.ConcurrencyStamp = stamp
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return goIdentity.ErrConcurrencyFailure
	case errors.Is(err, goIdentity.ErrConcurrencyFailure), errors.Is(err, goIdentity.ErrUserNotFound):
		return err
	default:
		return unavailable(err)
	}
}

// Delete removes the user and its sibling keys.
func (s *Store) Delete(ctx context.Context, user *goIdentity.User) error {
	key := s.userKey(user.ID)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if current.ConcurrencyStamp != user.ConcurrencyStamp {
			return goIdentity.ErrConcurrencyFailure
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.writeIndexes(ctx, pipe, current, nil)
			pipe.Del(ctx, key, s.recoveryKey(user.ID), s.rolesKey(user.ID), s.claimsKey(user.ID))
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return goIdentity.ErrConcurrencyFailure
	case errors.Is(err, goIdentity.ErrConcurrencyFailure), errors.Is(err, goIdentity.ErrUserNotFound):
		return err
	default:
		return unavailable(err)
	}
}

// writeIndexes moves name and email index entries from old to next. Either
// side may be nil.
func (s *Store) writeIndexes(ctx context.Context, pipe redis.Pipeliner, old, next *goIdentity.User) {
	if old != nil {
		if old.NormalizedUserName != "" && (next == nil || next.NormalizedUserName != old.NormalizedUserName) {
			pipe.Del(ctx, s.nameKey(old.NormalizedUserName))
		}
		if old.NormalizedEmail != "" && (next == nil || next.NormalizedEmail != old.NormalizedEmail) {
			pipe.Del(ctx, s.emailKey(old.NormalizedEmail))
		}
	}
	if next != nil {
		if next.NormalizedUserName != "" {
			pipe.Set(ctx, s.nameKey(next.NormalizedUserName), next.ID, 0)
		}
		if next.NormalizedEmail != "" {
			pipe.Set(ctx, s.emailKey(next.NormalizedEmail), next.ID, 0)
		}
	}
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *Store) load(ctx context.Context, c hashReader, key string) (*goIdentity.User, error) {
	h, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, goIdentity.ErrUserNotFound
	}
	return decodeUser(h)
}

func (s *Store) FindByID(ctx context.Context, userID string) (*goIdentity.User, error) {
	u, err := s.load(ctx, s.redis, s.userKey(userID))
	if err != nil && !errors.Is(err, goIdentity.ErrUserNotFound) && !errors.Is(err, errCorruptUser) {
		return nil, unavailable(err)
	}
	return u, err
}

func (s *Store) FindByName(ctx context.Context, normalizedUserName string) (*goIdentity.User, error) {
	return s.findByIndex(ctx, s.nameKey(normalizedUserName))
}

// FindByEmail follows the email index, which holds the most recently written
// owner when emails are not unique.
func (s *Store) FindByEmail(ctx context.Context, normalizedEmail string) (*goIdentity.User, error) {
	return s.findByIndex(ctx, s.emailKey(normalizedEmail))
}

func (s *Store) findByIndex(ctx context.Context, indexKey string) (*goIdentity.User, error) {
	id, err := s.redis.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, goIdentity.ErrUserNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return s.FindByID(ctx, id)
}

/*
====================================
ATOMIC PRIMITIVES
====================================
*/

// IncrementAccessFailedCount is a single HINCRBY; the concurrency stamp is
// left alone.
func (s *Store) IncrementAccessFailedCount(ctx context.Context, user *goIdentity.User) (int, error) {
	n, err := incrementLua.Run(ctx, s.redis, []string{s.userKey(user.ID)}, fieldAccessFailedCount).Int()
	if err != nil {
		return 0, unavailable(err)
	}
	if n < 0 {
		return 0, goIdentity.ErrUserNotFound
	}
	user.AccessFailedCount = n
	return n, nil
}

func (s *Store) GetRecoveryCodes(ctx context.Context, user *goIdentity.User) ([]string, error) {
	codes, err := s.redis.SMembers(ctx, s.recoveryKey(user.ID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *Store) ReplaceRecoveryCodes(ctx context.Context, user *goIdentity.User, digests []string) error {
	key := s.recoveryKey(user.ID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(digests) > 0 {
			members := make([]any, len(digests))
			for i, d := range digests {
				members[i] = d
			}
			pipe.SAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// RedeemRecoveryCode removes digest with SREM; only one caller can see 1.
func (s *Store) RedeemRecoveryCode(ctx context.Context, user *goIdentity.User, digest string) (bool, error) {
	n, err := s.redis.SRem(ctx, s.recoveryKey(user.ID), digest).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

/*
====================================
ROLES / CLAIMS
====================================
*/

func (s *Store) GetRoles(ctx context.Context, user *goIdentity.User) ([]string, error) {
	roles, err := s.redis.SMembers(ctx, s.rolesKey(user.ID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	sort.Strings(roles)
	return roles, nil
}

func (s *Store) AddToRole(ctx context.Context, user *goIdentity.User, role string) error {
	if err := s.redis.SAdd(ctx, s.rolesKey(user.ID), role).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) RemoveFromRole(ctx context.Context, user *goIdentity.User, role string) error {
	roles, err := s.GetRoles(ctx, user)
	if err != nil {
		return err
	}
	var matches []any
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	if err := s.redis.SRem(ctx, s.rolesKey(user.ID), matches...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) GetClaims(ctx context.Context, user *goIdentity.User) ([]goIdentity.Claim, error) {
	members, err := s.redis.SMembers(ctx, s.claimsKey(user.ID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	sort.Strings(members)
	out := make([]goIdentity.Claim, 0, len(members))
	for _, m := range members {
		if c, ok := decodeClaim(m); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) AddClaims(ctx context.Context, user *goIdentity.User, claims []goIdentity.Claim) error {
	if len(claims) == 0 {
		return nil
	}
	if err := s.redis.SAdd(ctx, s.claimsKey(user.ID), claimMembers(claims)...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) RemoveClaims(ctx context.Context, user *goIdentity.User, claims []goIdentity.Claim) error {
	if len(claims) == 0 {
		return nil
	}
	if err := s.redis.SRem(ctx, s.claimsKey(user.ID), claimMembers(claims)...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func claimMembers(claims []goIdentity.Claim) []any {
	out := make([]any, len(claims))
	for i, c := range claims {
		out[i] = encodeClaim(c)
	}
	return out
}

var (
	_ goIdentity.UserStore            = (*Store)(nil)
	_ goIdentity.UserLookupStore      = (*Store)(nil)
	_ goIdentity.AccessFailedCounter  = (*Store)(nil)
	_ goIdentity.RecoveryCodeRedeemer = (*Store)(nil)
	_ goIdentity.RoleStore            = (*Store)(nil)
	_ goIdentity.ClaimStore           = (*Store)(nil)
)
