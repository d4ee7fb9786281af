package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "test"), mr
}

func newUser(name, email string) *goIdentity.User {
	return &goIdentity.User{
		UserName:           name,
		NormalizedUserName: goIdentity.NormalizeKey(name),
		Email:              email,
		NormalizedEmail:    goIdentity.NormalizeKey(email),
	}
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	end := time.Unix(1700000000, 0).UTC()
	u := newUser("alice", "alice@example.com")
	u.EmailConfirmed = true
	u.LockoutEnabled = true
	u.LockoutEnd = &end
	u.AccessFailedCount = 2
	require.NoError(t, s.Create(ctx, u))
	require.NotEmpty(t, u.ID)
	require.NotEmpty(t, u.ConcurrencyStamp)
	assert.True(t, mr.Exists("test:user:"+u.ID))

	byID, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, byID)

	byName, err := s.FindByName(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := s.FindByEmail(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = s.FindByID(ctx, "missing")
	require.ErrorIs(t, err, goIdentity.ErrUserNotFound)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Create(ctx, newUser("bob", "")))
	err := s.Create(ctx, newUser("Bob", ""))
	require.ErrorIs(t, err, goIdentity.ErrDuplicateUser)
}

func TestUpdateConcurrencyAndIndexes(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	u := newUser("carol", "carol@example.com")
	require.NoError(t, s.Create(ctx, u))
	stale := u.Clone()

	u.UserName = "caroline"
	u.NormalizedUserName = "CAROLINE"
	require.NoError(t, s.Update(ctx, u))
	assert.False(t, mr.Exists("test:name:CAROL"))
	assert.True(t, mr.Exists("test:name:CAROLINE"))

	stale.PhoneNumber = "+1"
	require.ErrorIs(t, s.Update(ctx, stale), goIdentity.ErrConcurrencyFailure)

	got, err := s.FindByName(ctx, "CAROLINE")
	require.NoError(t, err)
	assert.Empty(t, got.PhoneNumber)
}

func TestIncrementAccessFailedCountKeepsStamp(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	u := newUser("dave", "")
	require.NoError(t, s.Create(ctx, u))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrementAccessFailedCount(ctx, u.Clone())
		}()
	}
	wg.Wait()

	n, err := s.IncrementAccessFailedCount(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, 11, u.AccessFailedCount)

	u.PhoneNumber = "+2"
	require.NoError(t, s.Update(ctx, u), "counter must not invalidate the caller's copy")

	_, err = s.IncrementAccessFailedCount(ctx, &goIdentity.User{ID: "missing"})
	require.ErrorIs(t, err, goIdentity.ErrUserNotFound)
}

func TestRecoveryCodes(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	u := newUser("erin", "")
	require.NoError(t, s.Create(ctx, u))
	require.NoError(t, s.ReplaceRecoveryCodes(ctx, u, []string{"b", "a"}))

	codes, err := s.GetRecoveryCodes(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, codes)

	ok, err := s.RedeemRecoveryCode(ctx, u, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.RedeemRecoveryCode(ctx, u, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReplaceRecoveryCodes(ctx, u, nil))
	codes, err = s.GetRecoveryCodes(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestRolesAndClaims(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	u := newUser("frank", "")
	require.NoError(t, s.Create(ctx, u))

	require.NoError(t, s.AddToRole(ctx, u, "Admin"))
	require.NoError(t, s.AddToRole(ctx, u, "Ops"))
	require.NoError(t, s.RemoveFromRole(ctx, u, "admin"))
	roles, err := s.GetRoles(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ops"}, roles)

	claims := []goIdentity.Claim{{Type: "tenant", Value: "t1"}, {Type: "plan", Value: "pro"}}
	require.NoError(t, s.AddClaims(ctx, u, claims))
	got, err := s.GetClaims(ctx, u)
	require.NoError(t, err)
	assert.ElementsMatch(t, claims, got)

	require.NoError(t, s.RemoveClaims(ctx, u, claims[:1]))
	got, err = s.GetClaims(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, claims[1:], got)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	u := newUser("gina", "gina@example.com")
	require.NoError(t, s.Create(ctx, u))
	require.NoError(t, s.ReplaceRecoveryCodes(ctx, u, []string{"x"}))
	require.NoError(t, s.Delete(ctx, u))

	assert.False(t, mr.Exists("test:user:"+u.ID))
	assert.False(t, mr.Exists("test:name:GINA"))
	assert.False(t, mr.Exists("test:email:GINA@EXAMPLE.COM"))
	assert.False(t, mr.Exists("test:rc:"+u.ID))
}

func TestUnavailableBackend(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := New(rdb, "")
	mr.Close()

	_, err = s.FindByID(context.Background(), "u1")
	require.ErrorIs(t, err, ErrRedisUnavailable)
}
