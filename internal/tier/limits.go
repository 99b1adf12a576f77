// internal/tier/limits.go
package tier

// Unlimited is the sentinel quota meaning no cap is enforced.
const Unlimited int64 = -1

// Limit types understood by the limits table and the rate limiter.
const (
	LimitMaxContacts    = "max_contacts"
	LimitMaxWorkflows   = "max_workflows"
	LimitAPICallsPerDay = "api_calls_per_day"
)

// Limits is one row of the static quota table.
type Limits struct {
	MaxContacts    int64
	MaxWorkflows   int64
	APICallsPerDay int64
	Features       []string
}

// tierLimits is read-only after process start. Feature sets are per-tier, not
// cumulative.
var tierLimits = map[Tier]Limits{
	Free: {
		MaxContacts:    100,
		MaxWorkflows:   5,
		APICallsPerDay: 100,
		Features:       []string{"basic_dashboard", "basic_analytics"},
	},
	Bronze: {
		MaxContacts:    1000,
		MaxWorkflows:   20,
		APICallsPerDay: 1000,
		Features:       []string{"advanced_analytics", "api_access"},
	},
	Silver: {
		MaxContacts:    10000,
		MaxWorkflows:   Unlimited,
		APICallsPerDay: 10000,
		Features:       []string{"unlimited_workflows", "api_access", "webhooks"},
	},
	Gold: {
		MaxContacts:    Unlimited,
		MaxWorkflows:   Unlimited,
		APICallsPerDay: Unlimited,
		Features:       []string{"all_features", "white_label", "custom_integrations"},
	},
}

// LimitsFor returns the quota row for a tier. Unknown tiers get the Free row.
func LimitsFor(t Tier) Limits {
	if l, ok := tierLimits[t]; ok {
		return l
	}
	return tierLimits[Free]
}

// Quota returns the numeric limit of the given type for a tier. Unknown limit
// types return 0, which denies by default.
func (l Limits) Quota(limitType string) int64 {
	switch limitType {
	case LimitMaxContacts:
		return l.MaxContacts
	case LimitMaxWorkflows:
		return l.MaxWorkflows
	case LimitAPICallsPerDay:
		return l.APICallsPerDay
	default:
		return 0
	}
}

// CheckLimit reports whether currentValue is still within the tier's quota for
// limitType. Used for counters held by consuming services (contacts,
// workflows) as opposed to the day-scoped counters the rate limiter owns.
func CheckLimit(t Tier, limitType string, currentValue int64) bool {
	limit := LimitsFor(t).Quota(limitType)
	if limit == Unlimited {
		return true
	}
	return currentValue < limit
}
