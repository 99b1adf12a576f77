// internal/tier/gate.go
package tier

import (
	"token-verification-service/internal/common/errors"
)

// Gate answers capability questions over the static limits table. It holds no
// state and has no failure modes beyond unknown tiers defaulting to Free.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

// HasFeature reports whether the tier's feature set includes the feature.
func (g *Gate) HasFeature(t Tier, feature string) bool {
	for _, f := range LimitsFor(t).Features {
		if f == feature {
			return true
		}
	}
	return false
}

// ListFeatures returns the features available to a tier.
func (g *Gate) ListFeatures(t Tier) []string {
	src := LimitsFor(t).Features
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// RequireFeature returns a typed ACCESS_DENIED error when the tier lacks the
// feature, for callers that short-circuit on a specific error kind.
func (g *Gate) RequireFeature(t Tier, feature string) error {
	if g.HasFeature(t, feature) {
		return nil
	}
	return errors.NewAccessDeniedError(t.String(), feature)
}
