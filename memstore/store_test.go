package memstore

import (
	"context"
	"sync"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(name string) *goIdentity.User {
	return &goIdentity.User{
		UserName:           name,
		NormalizedUserName: goIdentity.NormalizeKey(name),
	}
}

func TestCreateAssignsIDAndStamp(t *testing.T) {
	s := New()
	u := newUser("alice")
	require.NoError(t, s.Create(context.Background(), u))
	assert.NotEmpty(t, u.ID)
	assert.NotEmpty(t, u.ConcurrencyStamp)

	got, err := s.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserName)

	err = s.Create(context.Background(), newUser("ALICE"))
	require.ErrorIs(t, err, goIdentity.ErrDuplicateUser)
}

func TestUpdateDetectsStaleCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser("bob")
	require.NoError(t, s.Create(ctx, u))

	a, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	b, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)

	a.PhoneNumber = "+100"
	require.NoError(t, s.Update(ctx, a))

	b.PhoneNumber = "+200"
	require.ErrorIs(t, s.Update(ctx, b), goIdentity.ErrConcurrencyFailure)

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "+100", got.PhoneNumber)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser("carol")
	require.NoError(t, s.Create(ctx, u))

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	got.UserName = "mallory"

	again, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", again.UserName)
}

func TestIncrementAccessFailedCountConcurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser("dave")
	require.NoError(t, s.Create(ctx, u))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local, err := s.FindByID(ctx, u.ID)
			if err != nil {
				return
			}
			_, _ = s.IncrementAccessFailedCount(ctx, local)
		}()
	}
	wg.Wait()

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.AccessFailedCount)
	assert.Equal(t, u.ConcurrencyStamp, got.ConcurrencyStamp, "counter must not bump the concurrency stamp")
}

func TestRedeemRecoveryCodeOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser("erin")
	require.NoError(t, s.Create(ctx, u))
	require.NoError(t, s.ReplaceRecoveryCodes(ctx, u, []string{"d1", "d2"}))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		redeems int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.RedeemRecoveryCode(ctx, u, "d1")
			if err == nil && ok {
				mu.Lock()
				redeems++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, redeems)
	left, err := s.GetRecoveryCodes(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, left)
}

func TestRolesAndClaims(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser("frank")
	require.NoError(t, s.Create(ctx, u))

	require.NoError(t, s.AddToRole(ctx, u, "Admin"))
	require.NoError(t, s.AddToRole(ctx, u, "admin"))
	roles, err := s.GetRoles(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin"}, roles)

	require.NoError(t, s.RemoveFromRole(ctx, u, "ADMIN"))
	roles, err = s.GetRoles(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, roles)

	c := goIdentity.Claim{Type: "tenant", Value: "t1"}
	require.NoError(t, s.AddClaims(ctx, u, []goIdentity.Claim{c, c}))
	claims, err := s.GetClaims(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []goIdentity.Claim{c}, claims)

	require.NoError(t, s.RemoveClaims(ctx, u, []goIdentity.Claim{c}))
	claims, err = s.GetClaims(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestDeleteRemovesEverything(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := newUser("gina")
	require.NoError(t, s.Create(ctx, u))
	require.NoError(t, s.ReplaceRecoveryCodes(ctx, u, []string{"d"}))

	require.NoError(t, s.Delete(ctx, u))
	_, err := s.FindByID(ctx, u.ID)
	require.ErrorIs(t, err, goIdentity.ErrUserNotFound)
	assert.Equal(t, 0, s.Len())
}
