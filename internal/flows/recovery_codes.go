package flows

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/MrEthical07/goIdentity/internal"
)

// RecoveryCodeAlphabet omits I, O, 0 and 1.
const RecoveryCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// MaxRecoveryCodes bounds one generation request.
const MaxRecoveryCodes = 100

type RecoveryCodeMetrics struct {
	Redeemed    int
	Failed      int
	Regenerated int
}

type RecoveryCodeEvents struct {
	Generated string
	Redeemed  string
	Failed    string
}

type RecoveryCodeErrors struct {
	NotReady        error
	InvalidArgument error
	RateLimited     error
	Unavailable     error
}

// RecoveryCodeDeps is bound to one user by the caller.
type RecoveryCodeDeps struct {
	Length int

	GetDigests     func(context.Context) ([]string, error)
	ReplaceDigests func(context.Context, []string) error
	// RedeemDigest removes one digest atomically. When nil, redemption
	// falls back to GetDigests + ReplaceDigests, and two concurrent
	// redemptions of different codes can overwrite each other.
	RedeemDigest func(context.Context, string) (bool, error)

	CheckLimiter         func(context.Context, string) error
	RecordLimiterFailure func(context.Context, string) error
	ResetLimiter         func(context.Context, string) error
	IsRateLimited        func(error) bool

	RandomIndex func(int) (int, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, meta func() map[string]string)

	Metrics RecoveryCodeMetrics
	Events  RecoveryCodeEvents
	Errors  RecoveryCodeErrors
}

// RunGenerateRecoveryCodes creates count distinct codes, replaces the stored
// set with their digests and returns the formatted codes. The codes are not
// retrievable afterwards.
func RunGenerateRecoveryCodes(ctx context.Context, userID string, count int, deps RecoveryCodeDeps) ([]string, error) {
	normalizeRecoveryCodeDeps(&deps)

	if deps.ReplaceDigests == nil {
		return nil, deps.Errors.NotReady
	}
	if userID == "" || count <= 0 || count > MaxRecoveryCodes || deps.Length <= 0 {
		return nil, deps.Errors.InvalidArgument
	}

	seen := make(map[string]struct{}, count)
	digests := make([]string, 0, count)
	codes := make([]string, 0, count)
	for len(codes) < count {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := NewRecoveryCode(deps.Length, deps.RandomIndex)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		digests = append(digests, RecoveryCodeDigest(userID, raw))
		codes = append(codes, FormatRecoveryCode(raw))
	}

	if err := deps.ReplaceDigests(ctx, digests); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Regenerated)
	deps.EmitAudit(ctx, deps.Events.Generated, true, userID, nil, func() map[string]string {
		return map[string]string{"count": itoa(count)}
	})
	return codes, nil
}

// RunRedeemRecoveryCode consumes code if it is one of the user's unused
// codes. A code is accepted at most once.
func RunRedeemRecoveryCode(ctx context.Context, userID, code string, deps RecoveryCodeDeps) (bool, error) {
	normalizeRecoveryCodeDeps(&deps)

	if deps.RedeemDigest == nil && (deps.GetDigests == nil || deps.ReplaceDigests == nil) {
		return false, deps.Errors.NotReady
	}
	if userID == "" {
		return false, deps.Errors.InvalidArgument
	}

	if err := deps.CheckLimiter(ctx, userID); err != nil {
		if deps.IsRateLimited(err) {
			return false, deps.Errors.RateLimited
		}
		return false, deps.Errors.Unavailable
	}

	canonical := CanonicalizeRecoveryCode(code)
	ok := false
	if canonical != "" {
		var err error
		ok, err = redeemDigest(ctx, RecoveryCodeDigest(userID, canonical), deps)
		if err != nil {
			return false, err
		}
	}

	if !ok {
		deps.MetricInc(deps.Metrics.Failed)
		deps.EmitAudit(ctx, deps.Events.Failed, false, userID, nil, nil)
		if err := deps.RecordLimiterFailure(ctx, userID); err != nil && !deps.IsRateLimited(err) {
			return false, deps.Errors.Unavailable
		}
		return false, nil
	}

	_ = deps.ResetLimiter(ctx, userID)
	deps.MetricInc(deps.Metrics.Redeemed)
	deps.EmitAudit(ctx, deps.Events.Redeemed, true, userID, nil, nil)
	return true, nil
}

func redeemDigest(ctx context.Context, digest string, deps RecoveryCodeDeps) (bool, error) {
	if deps.RedeemDigest != nil {
		return deps.RedeemDigest(ctx, digest)
	}

	stored, err := deps.GetDigests(ctx)
	if err != nil {
		return false, err
	}
	idx := -1
	for i, d := range stored {
		if subtle.ConstantTimeCompare([]byte(d), []byte(digest)) == 1 {
			idx = i
		}
	}
	if idx < 0 {
		return false, nil
	}
	remaining := make([]string, 0, len(stored)-1)
	remaining = append(remaining, stored[:idx]...)
	remaining = append(remaining, stored[idx+1:]...)
	if err := deps.ReplaceDigests(ctx, remaining); err != nil {
		return false, err
	}
	return true, nil
}

// NewRecoveryCode draws length characters from RecoveryCodeAlphabet.
func NewRecoveryCode(length int, randomIndex func(int) (int, error)) (string, error) {
	if randomIndex == nil {
		randomIndex = internal.RandomIndex
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := randomIndex(len(RecoveryCodeAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(RecoveryCodeAlphabet[n])
	}
	return b.String(), nil
}

// FormatRecoveryCode splits codes of 8 or more characters in two halves.
func FormatRecoveryCode(code string) string {
	n := len(code)
	if n < 8 {
		return code
	}
	mid := n / 2
	return code[:mid] + "-" + code[mid:]
}

// CanonicalizeRecoveryCode upper-cases and drops spaces and dashes.
func CanonicalizeRecoveryCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// RecoveryCodeDigest is hex(SHA-256(userID || 0x00 || canonical)).
func RecoveryCodeDigest(userID, canonicalCode string) string {
	data := make([]byte, 0, len(userID)+1+len(canonicalCode))
	data = append(data, userID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func normalizeRecoveryCodeDeps(deps *RecoveryCodeDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.CheckLimiter == nil {
		deps.CheckLimiter = func(context.Context, string) error { return nil }
	}
	if deps.RecordLimiterFailure == nil {
		deps.RecordLimiterFailure = func(context.Context, string) error { return nil }
	}
	if deps.ResetLimiter == nil {
		deps.ResetLimiter = func(context.Context, string) error { return nil }
	}
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
	if deps.RandomIndex == nil {
		deps.RandomIndex = internal.RandomIndex
	}
}
