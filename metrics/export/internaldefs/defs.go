package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// Area is one credential subsystem. Exporters publish a single counter family
// per area and tell its counters apart with an event label.
type Area string

const (
	AreaUser         Area = "user"
	AreaPassword     Area = "password"
	AreaToken        Area = "token"
	AreaTwoFactor    Area = "two_factor"
	AreaRecoveryCode Area = "recovery_code"
	AreaLockout      Area = "lockout"
	AreaStamp        Area = "security_stamp"
	AreaSignIn       Area = "sign_in"
)

// EventLabel is the label (Prometheus) or attribute key (OTel) carrying
// CounterDef.Event.
const EventLabel = "event"

// PromFamily is the Prometheus counter family of a.
func (a Area) PromFamily() string {
	return "goidentity_" + string(a) + "_events_total"
}

// Instrument is the OTel instrument name of a.
func (a Area) Instrument() string {
	return "goidentity." + string(a) + ".events"
}

// AreaDef documents one family.
type AreaDef struct {
	Area Area
	Help string
}

// Areas lists every family in render order.
var Areas = []AreaDef{
	{AreaUser, "User lifecycle events."},
	{AreaPassword, "Password verification and change events."},
	{AreaToken, "Purpose-bound user token events."},
	{AreaTwoFactor, "Second-factor code checks."},
	{AreaRecoveryCode, "Recovery code generation and redemption."},
	{AreaLockout, "Access failures and lockouts."},
	{AreaStamp, "Security stamp rotation and validation."},
	{AreaSignIn, "Sign-in check outcomes."},
}

// CounterDef places one Manager counter in its area.
type CounterDef struct {
	ID    goIdentity.MetricID
	Area  Area
	Event string
}

// CounterDefs lists every exported counter, grouped by area.
var CounterDefs = []CounterDef{
	{goIdentity.MetricUserCreated, AreaUser, "created"},
	{goIdentity.MetricUserCreateRejected, AreaUser, "create_rejected"},
	{goIdentity.MetricConcurrencyFailure, AreaUser, "concurrency_failure"},

	{goIdentity.MetricPasswordCheckSuccess, AreaPassword, "check_success"},
	{goIdentity.MetricPasswordCheckFailure, AreaPassword, "check_failure"},
	{goIdentity.MetricPasswordRehashed, AreaPassword, "rehashed"},
	{goIdentity.MetricPasswordChanged, AreaPassword, "changed"},
	{goIdentity.MetricPasswordReset, AreaPassword, "reset"},
	{goIdentity.MetricPasswordPolicyRejected, AreaPassword, "policy_rejected"},

	{goIdentity.MetricTokenGenerated, AreaToken, "generated"},
	{goIdentity.MetricTokenValidated, AreaToken, "validated"},
	{goIdentity.MetricTokenRejected, AreaToken, "rejected"},

	{goIdentity.MetricTwoFactorSuccess, AreaTwoFactor, "success"},
	{goIdentity.MetricTwoFactorFailure, AreaTwoFactor, "failure"},
	{goIdentity.MetricTwoFactorRateLimited, AreaTwoFactor, "rate_limited"},

	{goIdentity.MetricRecoveryCodeRedeemed, AreaRecoveryCode, "redeemed"},
	{goIdentity.MetricRecoveryCodeFailed, AreaRecoveryCode, "failed"},
	{goIdentity.MetricRecoveryCodesRegenerated, AreaRecoveryCode, "regenerated"},

	{goIdentity.MetricAccessFailed, AreaLockout, "access_failed"},
	{goIdentity.MetricLockedOut, AreaLockout, "locked_out"},

	{goIdentity.MetricSecurityStampRotated, AreaStamp, "rotated"},
	{goIdentity.MetricStampValidationFailure, AreaStamp, "validation_failure"},

	{goIdentity.MetricSignInSuccess, AreaSignIn, "success"},
	{goIdentity.MetricSignInFailure, AreaSignIn, "failure"},
}

// CountersIn returns the counters of area in definition order.
func CountersIn(area Area) []CounterDef {
	var out []CounterDef
	for _, def := range CounterDefs {
		if def.Area == area {
			out = append(out, def)
		}
	}
	return out
}

// HashLatency describes the password hashing latency histogram.
var HashLatency = struct {
	ID         goIdentity.MetricID
	PromName   string
	Instrument string
	Help       string
}{
	ID:         goIdentity.MetricPasswordHashLatency,
	PromName:   "goidentity_password_hash_latency_seconds",
	Instrument: "goidentity.password.hash.duration",
	Help:       "Time spent hashing and verifying passwords.",
}

// BucketCount is the number of fixed latency buckets.
const BucketCount = 8

// HistogramBounds are the bucket upper bounds in seconds, in the form used
// for the le label.
var HistogramBounds = [BucketCount]string{"0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "1", "+Inf"}

// Audit backpressure counter names.
const (
	AuditDroppedName       = "goidentity_audit_dropped_total"
	AuditDroppedInstrument = "goidentity.audit.dropped"
	AuditDroppedHelp       = "Audit events dropped because the dispatcher buffer was full."
)

// CumulativeBuckets pads raw to BucketCount and converts it to running
// totals. The last element is the sample count.
func CumulativeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < BucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
