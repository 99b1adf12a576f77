package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-verification-service/internal/common/errors"
)

func TestHasFeature(t *testing.T) {
	gate := NewGate()

	tests := []struct {
		name     string
		tier     Tier
		feature  string
		expected bool
	}{
		{name: "free has basic dashboard", tier: Free, feature: "basic_dashboard", expected: true},
		{name: "free lacks api access", tier: Free, feature: "api_access", expected: false},
		{name: "bronze has api access", tier: Bronze, feature: "api_access", expected: true},
		{name: "bronze lacks webhooks", tier: Bronze, feature: "webhooks", expected: false},
		{name: "silver has webhooks", tier: Silver, feature: "webhooks", expected: true},
		{name: "gold has white label", tier: Gold, feature: "white_label", expected: true},
		{name: "feature sets are not cumulative", tier: Gold, feature: "webhooks", expected: false},
		{name: "unknown tier gets free features", tier: Tier("platinum"), feature: "basic_analytics", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, gate.HasFeature(tt.tier, tt.feature))
		})
	}
}

func TestListFeaturesReturnsCopy(t *testing.T) {
	gate := NewGate()

	features := gate.ListFeatures(Silver)
	require.NotEmpty(t, features)
	features[0] = "mutated"

	assert.NotContains(t, gate.ListFeatures(Silver), "mutated")
}

func TestRequireFeature(t *testing.T) {
	gate := NewGate()

	assert.NoError(t, gate.RequireFeature(Silver, "webhooks"))

	err := gate.RequireFeature(Bronze, "webhooks")
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeAccessDenied, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}
