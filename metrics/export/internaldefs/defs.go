package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/authgate"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricAuthSuccess, Name: "authgate_auth_success_total", Help: "Requests authenticated."},
	{ID: authgate.MetricAuthNoCredential, Name: "authgate_auth_no_credential_total", Help: "Requests without a bearer credential."},
	{ID: authgate.MetricAuthMalformed, Name: "authgate_auth_malformed_total", Help: "Credentials rejected as malformed."},
	{ID: authgate.MetricAuthExpired, Name: "authgate_auth_expired_total", Help: "Credentials rejected as expired."},
	{ID: authgate.MetricAuthRevoked, Name: "authgate_auth_revoked_total", Help: "Credentials rejected as revoked."},
	{ID: authgate.MetricAuthUserNotFound, Name: "authgate_auth_user_not_found_total", Help: "Credentials whose subject no longer exists."},
	{ID: authgate.MetricAuthInactiveAccount, Name: "authgate_auth_inactive_account_total", Help: "Credentials whose account is not active."},
	{ID: authgate.MetricAuthUnavailable, Name: "authgate_auth_unavailable_total", Help: "Authentications failed closed on a store error."},
	{ID: authgate.MetricSessionHydrated, Name: "authgate_session_hydrated_total", Help: "Sessions loaded and touched."},
	{ID: authgate.MetricSessionMiss, Name: "authgate_session_miss_total", Help: "Session ids that were unknown or expired."},
	{ID: authgate.MetricSessionCreated, Name: "authgate_session_created_total", Help: "Sessions created."},
	{ID: authgate.MetricSessionEnded, Name: "authgate_session_ended_total", Help: "Sessions ended."},
	{ID: authgate.MetricCredentialRevoked, Name: "authgate_credential_revoked_total", Help: "Credentials revoked."},
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful logins."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed logins."},
	{ID: authgate.MetricLoginRateLimited, Name: "authgate_login_rate_limited_total", Help: "Logins refused while cooling down."},
	{ID: authgate.MetricGuardDenied, Name: "authgate_guard_denied_total", Help: "Requests denied by a permission policy."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricAuthLatency, Name: "authgate_auth_latency_seconds", Help: "Authentication pipeline latency."},
}

// AuditDroppedName is the counter for events lost to dispatcher backpressure.
const (
	AuditDroppedName = "authgate_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are [authgate.LatencyBounds] in seconds. The
// engine's overflow bucket is +Inf.
var HistogramUpperBounds = upperBounds()

// HistogramBoundSuffix names each bucket in instrument names, the overflow
// bucket last as "inf".
var HistogramBoundSuffix = boundSuffixes()

// BucketCount is the number of buckets including +Inf.
const BucketCount = len(authgate.LatencyBounds) + 1

func upperBounds() []float64 {
	out := make([]float64, len(authgate.LatencyBounds))
	for i, d := range authgate.LatencyBounds {
		out[i] = d.Seconds()
	}
	return out
}

func boundSuffixes() []string {
	out := make([]string, 0, BucketCount)
	for _, le := range upperBounds() {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(le, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}

// CumulativeBuckets returns running totals of h's buckets, zero-filled or
// truncated to BucketCount.
func CumulativeBuckets(h authgate.HistogramSnapshot) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := range out {
		if i < len(h.Buckets) {
			running += h.Buckets[i]
		}
		out[i] = running
	}
	return out
}
