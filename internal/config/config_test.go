package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Ledger", cfg.GoogleSheetWorksheet)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.InDelta(t, 20, cfg.Policy.AvgDaysToPay.Good, 0.001)
	assert.InDelta(t, 0.20, cfg.Policy.AvgDaysToPay.Weight, 0.001)
	assert.Equal(t, 90, cfg.Policy.LongTermDays)
	assert.Equal(t, int64(10_000), cfg.Policy.RoundUnit)
}

func TestLoadPolicyOverrides(t *testing.T) {
	t.Setenv("RISK_AVG_DAYS_TO_PAY_GOOD", "25")
	t.Setenv("RISK_AVG_DAYS_TO_PAY_AVG", "45")
	t.Setenv("RISK_AVG_DAYS_TO_PAY_WEIGHT", "0.3")
	t.Setenv("RISK_LONG_TERM_MULT_GOOD", "4")
	t.Setenv("RISK_LONG_TERM_DAYS", "60")
	t.Setenv("RISK_ROUND_UNIT", "5000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 25, cfg.Policy.AvgDaysToPay.Good, 0.001)
	assert.InDelta(t, 45, cfg.Policy.AvgDaysToPay.Avg, 0.001)
	assert.InDelta(t, 0.3, cfg.Policy.AvgDaysToPay.Weight, 0.001)
	assert.InDelta(t, 4, cfg.Policy.LongTermMultipliers.Good, 0.001)
	assert.Equal(t, 60, cfg.Policy.LongTermDays)
	assert.Equal(t, int64(5000), cfg.Policy.RoundUnit)

	// Unrelated thresholds keep their defaults.
	assert.InDelta(t, 0.10, cfg.Policy.OverdueRate.Good, 0.001)
}

func TestLoadPresentationThresholdOverrides(t *testing.T) {
	t.Setenv("RISK_PCT_PAID_AFTER_TERM_GOOD", "0.1")
	t.Setenv("RISK_OVERDUE_VS_LIMIT_AVG", "0.9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.1, cfg.Policy.PctPaidAfterTerm.Good, 0.001)
	assert.InDelta(t, 0.60, cfg.Policy.PctPaidAfterTerm.Avg, 0.001)
	assert.InDelta(t, 0.9, cfg.Policy.OverdueVsLimit.Avg, 0.001)

	// The scored check threshold is untouched by the presentation rows'
	// settings.
	assert.InDelta(t, 0.30, cfg.Policy.PctChecksOverTerm.Good, 0.001)
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("RISK_OVERDUE_RATE_GOOD", "0.8")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RISK_OVERDUE_RATE")
}

func TestLoadRejectsNegativeWeight(t *testing.T) {
	t.Setenv("RISK_BLENDED_DAYS_TO_PAY_WEIGHT", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative weight")
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("RISK_AVG_DAYS_TO_PAY_GOOD", "not-a-number")
	t.Setenv("RISK_ROUND_UNIT", "-5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 20, cfg.Policy.AvgDaysToPay.Good, 0.001)
	assert.Equal(t, int64(10_000), cfg.Policy.RoundUnit)
}
