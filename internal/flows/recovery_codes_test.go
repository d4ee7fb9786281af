package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type digestStore struct {
	mu      sync.Mutex
	digests []string
}

func (s *digestStore) get(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.digests...), nil
}

func (s *digestStore) replace(_ context.Context, d []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digests = append([]string(nil), d...)
	return nil
}

func (s *digestStore) redeem(_ context.Context, digest string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.digests {
		if d == digest {
			s.digests = append(s.digests[:i], s.digests[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

var errNotReady = errors.New("not ready")

func depsFor(s *digestStore, atomic bool) RecoveryCodeDeps {
	d := RecoveryCodeDeps{
		Length:         10,
		GetDigests:     s.get,
		ReplaceDigests: s.replace,
		Errors: RecoveryCodeErrors{
			NotReady:        errNotReady,
			InvalidArgument: errors.New("invalid"),
			RateLimited:     errors.New("limited"),
			Unavailable:     errors.New("unavailable"),
		},
	}
	if atomic {
		d.RedeemDigest = s.redeem
	}
	return d
}

func TestGenerateRecoveryCodesFormatAndStorage(t *testing.T) {
	s := &digestStore{}
	codes, err := RunGenerateRecoveryCodes(context.Background(), "u1", 10, depsFor(s, true))
	require.NoError(t, err)
	require.Len(t, codes, 10)
	require.Len(t, s.digests, 10)

	seen := map[string]bool{}
	for _, c := range codes {
		require.Len(t, c, 11)
		require.Equal(t, byte('-'), c[5])
		for _, r := range strings.ReplaceAll(c, "-", "") {
			require.Contains(t, RecoveryCodeAlphabet, string(r))
		}
		require.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
		require.NotContains(t, s.digests, c, "plaintext must never be stored")
	}
}

func TestGenerateRecoveryCodesDeduplicates(t *testing.T) {
	s := &digestStore{}
	var seq []int
	for _, v := range []int{0, 0, 1} {
		for i := 0; i < 10; i++ {
			seq = append(seq, v)
		}
	}
	draws := 0
	deps := depsFor(s, true)
	deps.RandomIndex = func(int) (int, error) {
		v := seq[draws]
		draws++
		return v, nil
	}
	// Draws: AAAAAAAAAA, AAAAAAAAAA (skipped), BBBBBBBBBB.
	codes, err := RunGenerateRecoveryCodes(context.Background(), "u1", 2, deps)
	require.NoError(t, err)
	require.Equal(t, []string{"AAAAA-AAAAA", "BBBBB-BBBBB"}, codes)
	require.Equal(t, 30, draws)
}

func TestRedeemRecoveryCodeSingleUse(t *testing.T) {
	for _, atomic := range []bool{true, false} {
		s := &digestStore{}
		deps := depsFor(s, atomic)
		codes, err := RunGenerateRecoveryCodes(context.Background(), "u1", 3, deps)
		require.NoError(t, err)

		ok, err := RunRedeemRecoveryCode(context.Background(), "u1", strings.ToLower(codes[1]), deps)
		require.NoError(t, err)
		require.True(t, ok, "lower-case code with dash should redeem (atomic=%v)", atomic)
		require.Len(t, s.digests, 2)

		ok, err = RunRedeemRecoveryCode(context.Background(), "u1", codes[1], deps)
		require.NoError(t, err)
		require.False(t, ok, "second redemption must fail (atomic=%v)", atomic)
		require.Len(t, s.digests, 2)
	}
}

func TestRedeemRecoveryCodeBoundToUser(t *testing.T) {
	s := &digestStore{}
	deps := depsFor(s, true)
	codes, err := RunGenerateRecoveryCodes(context.Background(), "u1", 1, deps)
	require.NoError(t, err)

	ok, err := RunRedeemRecoveryCode(context.Background(), "u2", codes[0], deps)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedeemRecoveryCodeRegenerationInvalidatesOldSet(t *testing.T) {
	s := &digestStore{}
	deps := depsFor(s, true)
	old, err := RunGenerateRecoveryCodes(context.Background(), "u1", 5, deps)
	require.NoError(t, err)
	_, err = RunGenerateRecoveryCodes(context.Background(), "u1", 5, deps)
	require.NoError(t, err)

	for _, c := range old {
		ok, err := RunRedeemRecoveryCode(context.Background(), "u1", c, deps)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestRedeemRecoveryCodeRateLimited(t *testing.T) {
	s := &digestStore{}
	deps := depsFor(s, true)
	limited := errors.New("limited")
	deps.CheckLimiter = func(context.Context, string) error { return limited }
	deps.IsRateLimited = func(err error) bool { return errors.Is(err, limited) }

	_, err := RunRedeemRecoveryCode(context.Background(), "u1", "ABCDE-FGHJK", deps)
	require.ErrorIs(t, err, deps.Errors.RateLimited)
}

func TestRedeemRecoveryCodeCountsFailures(t *testing.T) {
	s := &digestStore{}
	deps := depsFor(s, true)
	failures := 0
	var events []string
	deps.RecordLimiterFailure = func(context.Context, string) error { failures++; return nil }
	deps.Events = RecoveryCodeEvents{Failed: "failed"}
	deps.EmitAudit = func(_ context.Context, ev string, _ bool, _ string, _ error, _ func() map[string]string) {
		events = append(events, ev)
	}

	ok, err := RunRedeemRecoveryCode(context.Background(), "u1", "", deps)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, failures)
	require.Equal(t, []string{"failed"}, events)
}

func TestRecoveryCodeDigestIsStable(t *testing.T) {
	a := RecoveryCodeDigest("u1", "ABCDEFGHJK")
	require.Equal(t, a, RecoveryCodeDigest("u1", CanonicalizeRecoveryCode(" abcde-fghjk ")))
	require.NotEqual(t, a, RecoveryCodeDigest("u2", "ABCDEFGHJK"))
	require.Len(t, a, 64)
}

func TestRecoveryFlowsRequireStore(t *testing.T) {
	_, err := RunGenerateRecoveryCodes(context.Background(), "u1", 1, RecoveryCodeDeps{Length: 10, Errors: RecoveryCodeErrors{NotReady: errNotReady}})
	require.ErrorIs(t, err, errNotReady)
	_, err = RunRedeemRecoveryCode(context.Background(), "u1", "x", RecoveryCodeDeps{Errors: RecoveryCodeErrors{NotReady: errNotReady}})
	require.ErrorIs(t, err, errNotReady)
}

func TestGenerateRecoveryCodesRejectsExcessiveCount(t *testing.T) {
	s := &digestStore{}
	deps := depsFor(s, true)

	_, err := RunGenerateRecoveryCodes(context.Background(), "u1", MaxRecoveryCodes+1, deps)
	require.ErrorIs(t, err, deps.Errors.InvalidArgument)
	require.Empty(t, s.digests)

	codes, err := RunGenerateRecoveryCodes(context.Background(), "u1", MaxRecoveryCodes, deps)
	require.NoError(t, err)
	require.Len(t, codes, MaxRecoveryCodes)
}
