package internaldefs

import (
	"github.com/MrEthical07/authgate"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful logins."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed logins (bad credentials, inactive account, store errors)."},
	{ID: authgate.MetricLoginRateLimited, Name: "authgate_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authgate.MetricRegisterSuccess, Name: "authgate_register_success_total", Help: "Accounts created."},
	{ID: authgate.MetricRegisterDuplicate, Name: "authgate_register_duplicate_total", Help: "Registrations rejected for a taken identity."},
	{ID: authgate.MetricRegisterRateLimited, Name: "authgate_register_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: authgate.MetricRefreshSuccess, Name: "authgate_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authgate.MetricRefreshFailure, Name: "authgate_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authgate.MetricRefreshReuseDetected, Name: "authgate_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation."},
	{ID: authgate.MetricRefreshRateLimited, Name: "authgate_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Single-session logouts."},
	{ID: authgate.MetricLogoutRateLimited, Name: "authgate_logout_rate_limited_total", Help: "Rate-limited logout attempts."},
	{ID: authgate.MetricLogoutAll, Name: "authgate_logout_all_total", Help: "Logout-everywhere operations."},
	{ID: authgate.MetricLogoutAllRateLimited, Name: "authgate_logout_all_rate_limited_total", Help: "Rate-limited logout-everywhere attempts."},
	{ID: authgate.MetricRateLimitHit, Name: "authgate_rate_limit_hit_total", Help: "Requests denied by any rate-limit rule."},
	{ID: authgate.MetricCounterFallback, Name: "authgate_counter_fallback_total", Help: "Limiter checks served by the in-process fallback."},
	{ID: authgate.MetricTokenRejected, Name: "authgate_token_rejected_total", Help: "Tokens rejected by verification."},
	{ID: authgate.MetricStoreDegraded, Name: "authgate_store_degraded_total", Help: "Revocation checks skipped because the store was unavailable."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricVerifyLatency, Name: "authgate_verify_latency_seconds", Help: "Token verification latency."},
}

// HistogramBounds are the upper bounds of the engine's eight latency
// buckets, in seconds, as Prometheus le labels.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundsSeconds mirrors HistogramBounds without the +Inf bucket.
var HistogramBoundsSeconds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
