package flows

import (
	"context"
	"strconv"
)

type TwoFactorMetrics struct {
	Success     int
	Failure     int
	RateLimited int
}

type TwoFactorEvents struct {
	Success     string
	Failure     string
	RateLimited string
}

type TwoFactorErrors struct {
	NotReady    error
	RateLimited error
	Unavailable error
}

type TwoFactorDeps struct {
	// Validate runs the provider check for the bound user.
	Validate func(context.Context) (bool, error)

	CheckLimiter         func(context.Context, string) error
	RecordLimiterFailure func(context.Context, string) error
	ResetLimiter         func(context.Context, string) error
	IsRateLimited        func(error) bool

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, meta func() map[string]string)

	Metrics TwoFactorMetrics
	Events  TwoFactorEvents
	Errors  TwoFactorErrors
}

// RunVerifyTwoFactor validates one second-factor code for userID through
// provider, counting failures against the attempt limiter.
func RunVerifyTwoFactor(ctx context.Context, userID, provider string, deps TwoFactorDeps) (bool, error) {
	normalizeTwoFactorDeps(&deps)

	if deps.Validate == nil {
		return false, deps.Errors.NotReady
	}
	meta := func() map[string]string { return map[string]string{"provider": provider} }

	if err := deps.CheckLimiter(ctx, userID); err != nil {
		if deps.IsRateLimited(err) {
			deps.MetricInc(deps.Metrics.RateLimited)
			deps.EmitAudit(ctx, deps.Events.RateLimited, false, userID, deps.Errors.RateLimited, meta)
			return false, deps.Errors.RateLimited
		}
		return false, deps.Errors.Unavailable
	}

	ok, err := deps.Validate(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, nil, meta)
		if err := deps.RecordLimiterFailure(ctx, userID); err != nil && !deps.IsRateLimited(err) {
			return false, deps.Errors.Unavailable
		}
		return false, nil
	}

	_ = deps.ResetLimiter(ctx, userID)
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, userID, nil, meta)
	return true, nil
}

func normalizeTwoFactorDeps(deps *TwoFactorDeps) {
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
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
