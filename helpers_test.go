package goIdentity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/memstore"
)

// testConfig keeps argon2id at its minimum cost so tests stay fast.
func testConfig() goIdentity.Config {
	cfg := goIdentity.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

// relaxedConfig accepts lowercase-and-digit passwords such as "password1".
func relaxedConfig() goIdentity.Config {
	cfg := testConfig()
	cfg.PasswordPolicy.RequireNonAlphanumeric = false
	cfg.PasswordPolicy.RequireUppercase = false
	return cfg
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1700000000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, cfg goIdentity.Config, configure ...func(*goIdentity.Builder)) (*goIdentity.Manager, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	b := goIdentity.New().WithConfig(cfg).WithStore(store)
	for _, fn := range configure {
		fn(b)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(m.Close)
	return m, store
}

func withClock(c *testClock) func(*goIdentity.Builder) {
	return func(b *goIdentity.Builder) { b.WithClock(c.Now) }
}

func createUser(t *testing.T, m *goIdentity.Manager, name, pw string) *goIdentity.User {
	t.Helper()
	u := &goIdentity.User{UserName: name, Email: name + "@example.com"}
	var (
		res goIdentity.Result
		err error
	)
	if pw == "" {
		res, err = m.Create(context.Background(), u)
	} else {
		res, err = m.CreateWithPassword(context.Background(), u, pw)
	}
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if !res.Succeeded {
		t.Fatalf("create %s: %s", name, res)
	}
	return u
}

func mustSucceed(t *testing.T, what string, res goIdentity.Result, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", what, err)
	}
	if !res.Succeeded {
		t.Fatalf("%s: expected success, got %s", what, res)
	}
}
