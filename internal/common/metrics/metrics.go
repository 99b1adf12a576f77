// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_verifications_total",
			Help: "Total number of token verifications by outcome",
		},
		[]string{"network", "outcome"},
	)

	ChainCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chain_call_duration_seconds",
			Help: "Duration of read-only chain calls in seconds",
		},
		[]string{"network", "method"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_cache_lookups_total",
			Help: "Verification cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Rate limiter decisions by outcome (allowed, denied, fail_open)",
		},
		[]string{"limit_type", "outcome"},
	)

	TierResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tier_resolutions_total",
			Help: "Tier resolutions by authority (account, wallet, fallback_free)",
		},
		[]string{"authority"},
	)
)
