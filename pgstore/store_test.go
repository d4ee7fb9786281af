package pgstore

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// newTestStore connects to GOIDENTITY_TEST_PG_DSN and migrates the schema.
// Tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GOIDENTITY_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("GOIDENTITY_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool, nil))
	_, err = pool.Exec(ctx, "TRUNCATE identity_users CASCADE")
	require.NoError(t, err)
	return New(pool)
}

func newUser(name string) *goIdentity.User {
	return &goIdentity.User{
		UserName:           name,
		NormalizedUserName: goIdentity.NormalizeKey(name),
		Email:              name + "@example.com",
		NormalizedEmail:    goIdentity.NormalizeKey(name + "@example.com"),
		SecurityStamp:      "STAMP",
		LockoutEnabled:     true,
	}
}

func TestCreateFindUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := newUser("alice")
	require.NoError(t, s.Create(ctx, u))
	require.NotEmpty(t, u.ID)
	require.NotEmpty(t, u.ConcurrencyStamp)

	got, err := s.FindByName(ctx, "ALICE")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = s.FindByEmail(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	stale := *got
	got.PhoneNumber = "+15550100"
	require.NoError(t, s.Update(ctx, got))
	require.ErrorIs(t, s.Update(ctx, &stale), goIdentity.ErrConcurrencyFailure)

	_, err = s.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, goIdentity.ErrUserNotFound)
}

func TestDuplicateUserName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Create(ctx, newUser("bob")))
	require.ErrorIs(t, s.Create(ctx, newUser("bob")), goIdentity.ErrDuplicateUser)
}

func TestIncrementAccessFailedCountConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newUser("carol")
	require.NoError(t, s.Create(ctx, u))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			copyOf := *u
			_, err := s.IncrementAccessFailedCount(ctx, &copyOf)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 20, got.AccessFailedCount)
	require.NoError(t, s.Update(ctx, got))
}

func TestRecoveryCodesRedeemOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newUser("dave")
	require.NoError(t, s.Create(ctx, u))

	require.NoError(t, s.ReplaceRecoveryCodes(ctx, u, []string{"d1", "d2"}))
	ok, err := s.RedeemRecoveryCode(ctx, u, "d1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.RedeemRecoveryCode(ctx, u, "d1")
	require.NoError(t, err)
	require.False(t, ok)

	codes, err := s.GetRecoveryCodes(ctx, u)
	require.NoError(t, err)
	require.Equal(t, []string{"d2"}, codes)
}

func TestRolesAndClaims(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newUser("erin")
	require.NoError(t, s.Create(ctx, u))

	require.NoError(t, s.AddToRole(ctx, u, "Admin"))
	require.NoError(t, s.AddToRole(ctx, u, "admin"))
	roles, err := s.GetRoles(ctx, u)
	require.NoError(t, err)
	require.Equal(t, []string{"Admin"}, roles)
	require.NoError(t, s.RemoveFromRole(ctx, u, "ADMIN"))
	roles, err = s.GetRoles(ctx, u)
	require.NoError(t, err)
	require.Empty(t, roles)

	claim := goIdentity.Claim{Type: "tenant", Value: "acme"}
	require.NoError(t, s.AddClaims(ctx, u, []goIdentity.Claim{claim}))
	claims, err := s.GetClaims(ctx, u)
	require.NoError(t, err)
	require.Equal(t, []goIdentity.Claim{claim}, claims)
	require.NoError(t, s.RemoveClaims(ctx, u, []goIdentity.Claim{claim}))
	claims, err = s.GetClaims(ctx, u)
	require.NoError(t, err)
	require.Empty(t, claims)
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := newUser("frank")
	require.NoError(t, s.Create(ctx, u))
	require.NoError(t, s.ReplaceRecoveryCodes(ctx, u, []string{"d1"}))

	require.NoError(t, s.Delete(ctx, u))
	_, err := s.FindByID(ctx, u.ID)
	require.ErrorIs(t, err, goIdentity.ErrUserNotFound)
	codes, err := s.GetRecoveryCodes(ctx, u)
	require.NoError(t, err)
	require.Empty(t, codes)
}
