// Command identity-bench measures Manager throughput and latency against a
// Redis-backed store. Without -redis-addr or REDIS_ADDR it runs on miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/prometheus"
	"github.com/MrEthical07/goIdentity/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const benchPassword = "bench-Password-1"

func main() {
	var (
		users       = flag.Int("users", 200, "number of users to seed")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		ops         = flag.Int("ops", 2000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gidbench", "store key prefix")
		memoryKB    = flag.Uint("hash-memory", 19456, "argon2id memory in KB")
		showMetrics = flag.Bool("metrics", false, "print Prometheus metrics after the run")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()
	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := goIdentity.DefaultConfig()
	cfg.Password.Memory = uint32(*memoryKB)
	cfg.Password.Time = 1
	cfg.Lockout.MaxFailedAccessAttempts = 1 << 20
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	m, err := goIdentity.New().
		WithConfig(cfg).
		WithStore(redisstore.New(client, *prefix)).
		WithRedis(client).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build manager: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	seeded, seedStats := runPhase(*users, *concurrency, seedUser(ctx, m))
	if len(seeded.list()) != *users {
		fmt.Fprintf(os.Stderr, "seeded %d of %d users\n", len(seeded.list()), *users)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))
	all := seeded.list()

	_, signIn := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int, _ *userSet) error {
		u, err := m.FindByID(ctx, all[r.Intn(len(all))])
		if err != nil {
			return err
		}
		res, err := m.CheckPasswordSignIn(ctx, u, benchPassword, false)
		if err != nil {
			return err
		}
		if !res.Succeeded {
			return fmt.Errorf("sign-in %s", res)
		}
		return nil
	})

	_, tokens := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int, _ *userSet) error {
		u, err := m.FindByID(ctx, all[r.Intn(len(all))])
		if err != nil {
			return err
		}
		tok, err := m.GenerateUserToken(ctx, u, goIdentity.ProviderDefault, goIdentity.PurposeResetPassword)
		if err != nil {
			return err
		}
		ok, err := m.VerifyUserToken(ctx, u, goIdentity.ProviderDefault, goIdentity.PurposeResetPassword, tok)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("token rejected")
		}
		return nil
	})

	_, failures := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int, _ *userSet) error {
		u, err := m.FindByID(ctx, all[r.Intn(len(all))])
		if err != nil {
			return err
		}
		_, err = m.AccessFailed(ctx, u)
		return err
	})

	fmt.Println("---- results ----")
	printStats("seed", seedStats)
	printStats("password-sign-in", signIn)
	printStats("token-roundtrip", tokens)
	printStats("access-failed", failures)

	if *showMetrics {
		fmt.Println("---- metrics ----")
		fmt.Print(prometheus.NewPrometheusExporter(m).Render())
	}
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seedUser(ctx context.Context, m *goIdentity.Manager) func(*rand.Rand, int, *userSet) error {
	runID := time.Now().UnixNano()
	return func(_ *rand.Rand, i int, out *userSet) error {
		u := &goIdentity.User{UserName: fmt.Sprintf("bench-%d-%d", runID, i)}
		res, err := m.CreateWithPassword(ctx, u, benchPassword)
		if err != nil {
			return err
		}
		if !res.Succeeded {
			return res.Err()
		}
		out.add(u.ID)
		return nil
	}
}

type userSet struct {
	mu  sync.Mutex
	ids []string
}

func (s *userSet) add(id string) {
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()
}

func (s *userSet) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int, out *userSet) error) (*userSet, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
		out       = &userSet{}
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i, out)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return out, computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
