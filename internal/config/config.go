package config

import (
	"fmt"
	"os"
	"strconv"

	"artool/internal/logger"
	"artool/internal/risk"
)

type Config struct {
	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string

	// Risk policy overrides; defaults come from risk.DefaultPolicy.
	Policy risk.Policy
}

func Load() (*Config, error) {
	config := &Config{
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "Ledger"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stdout"),
		Policy:               loadPolicy(),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// loadPolicy starts from the documented defaults and applies RISK_*
// environment overrides. The thresholds and multipliers are business
// policy, not engine constants.
func loadPolicy() risk.Policy {
	p := risk.DefaultPolicy()

	overrideThreshold(&p.AvgDaysToPay, "RISK_AVG_DAYS_TO_PAY")
	overrideThreshold(&p.WeightedAvgAgeUnpaid, "RISK_AVG_AGE_UNPAID")
	overrideThreshold(&p.OverdueRate, "RISK_OVERDUE_RATE")
	overrideThreshold(&p.BlendedDaysToPay, "RISK_BLENDED_DAYS_TO_PAY")
	overrideThreshold(&p.CheckMaturityOverrun, "RISK_MATURITY_OVERRUN")
	overrideThreshold(&p.PctChecksOverTerm, "RISK_PCT_CHECKS_OVER_TERM")
	overrideThreshold(&p.PctPaidAfterTerm, "RISK_PCT_PAID_AFTER_TERM")
	overrideThreshold(&p.OverdueVsLimit, "RISK_OVERDUE_VS_LIMIT")

	overrideMultipliers(&p.LongTermMultipliers, "RISK_LONG_TERM_MULT")
	overrideMultipliers(&p.ShortTermMultipliers, "RISK_SHORT_TERM_MULT")

	if v, ok := getEnvInt("RISK_LONG_TERM_DAYS"); ok {
		p.LongTermDays = v
	}
	if v, ok := getEnvInt("RISK_ROUND_UNIT"); ok && v > 0 {
		p.RoundUnit = int64(v)
	}

	return p
}

func overrideThreshold(t *risk.Threshold, prefix string) {
	if v, ok := getEnvFloat(prefix + "_GOOD"); ok {
		t.Good = v
	}
	if v, ok := getEnvFloat(prefix + "_AVG"); ok {
		t.Avg = v
	}
	if v, ok := getEnvFloat(prefix + "_WEIGHT"); ok {
		t.Weight = v
	}
}

func overrideMultipliers(m *risk.Multipliers, prefix string) {
	if v, ok := getEnvFloat(prefix + "_GOOD"); ok {
		m.Good = v
	}
	if v, ok := getEnvFloat(prefix + "_AVERAGE"); ok {
		m.Average = v
	}
	if v, ok := getEnvFloat(prefix + "_POOR"); ok {
		m.Poor = v
	}
}

func (c *Config) validate() error {
	for _, t := range []struct {
		name string
		risk.Threshold
	}{
		{"RISK_AVG_DAYS_TO_PAY", c.Policy.AvgDaysToPay},
		{"RISK_AVG_AGE_UNPAID", c.Policy.WeightedAvgAgeUnpaid},
		{"RISK_OVERDUE_RATE", c.Policy.OverdueRate},
		{"RISK_BLENDED_DAYS_TO_PAY", c.Policy.BlendedDaysToPay},
		{"RISK_MATURITY_OVERRUN", c.Policy.CheckMaturityOverrun},
		{"RISK_PCT_CHECKS_OVER_TERM", c.Policy.PctChecksOverTerm},
		{"RISK_PCT_PAID_AFTER_TERM", c.Policy.PctPaidAfterTerm},
		{"RISK_OVERDUE_VS_LIMIT", c.Policy.OverdueVsLimit},
	} {
		if t.Good > t.Avg {
			return fmt.Errorf("%s: good threshold %v exceeds average threshold %v", t.name, t.Good, t.Avg)
		}
		if t.Weight < 0 {
			return fmt.Errorf("%s: negative weight %v", t.name, t.Weight)
		}
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func getEnvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
