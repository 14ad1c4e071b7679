// Package risk maps the derived metric set to a composite score, a risk
// band and a recommended credit limit.
package risk

import (
	"github.com/shopspring/decimal"

	"artool/internal/metrics"
	"artool/pkg/models"
)

// Threshold scores one lower-is-better metric: full credit at or below
// Good, half credit at or below Avg, zero above.
type Threshold struct {
	Good   float64
	Avg    float64
	Weight float64
}

// Multipliers is the monthly-purchases multiplier per risk band.
type Multipliers struct {
	Good    float64
	Average float64
	Poor    float64
}

func (m Multipliers) For(band models.Band) float64 {
	switch band {
	case models.BandGood:
		return m.Good
	case models.BandAverage:
		return m.Average
	case models.BandPoor:
		return m.Poor
	}
	return m.Poor
}

// Policy carries every scoring threshold and credit-limit constant. The
// values are business policy, not engine logic; DefaultPolicy holds the
// documented defaults and internal/config overrides them from the
// environment.
type Policy struct {
	AvgDaysToPay         Threshold
	WeightedAvgAgeUnpaid Threshold
	OverdueRate          Threshold
	BlendedDaysToPay     Threshold
	CheckMaturityOverrun Threshold
	PctChecksOverTerm    Threshold

	// PctPaidAfterTerm and OverdueVsLimit assess presentation-only rows;
	// their weights never enter the composite score.
	PctPaidAfterTerm Threshold
	OverdueVsLimit   Threshold

	// LongTermDays marks a customer as long-term dominant when their most
	// common payment term reaches it.
	LongTermDays         int
	LongTermMultipliers  Multipliers
	ShortTermMultipliers Multipliers

	// RoundUnit rounds the credit limit up to avoid false precision.
	RoundUnit int64
}

// DefaultPolicy returns the canonical weights, thresholds and multipliers.
func DefaultPolicy() Policy {
	return Policy{
		AvgDaysToPay:         Threshold{Good: 20, Avg: 40, Weight: 0.20},
		WeightedAvgAgeUnpaid: Threshold{Good: 10, Avg: 20, Weight: 0.10},
		OverdueRate:          Threshold{Good: 0.10, Avg: 0.30, Weight: 0.10},
		BlendedDaysToPay:     Threshold{Good: 15, Avg: 50, Weight: 0.20},
		CheckMaturityOverrun: Threshold{Good: 0, Avg: 30, Weight: 0.20},
		PctChecksOverTerm:    Threshold{Good: 0.30, Avg: 0.60, Weight: 0.20},

		PctPaidAfterTerm: Threshold{Good: 0.30, Avg: 0.60},
		OverdueVsLimit:   Threshold{Good: 0.30, Avg: 0.60},

		LongTermDays:         90,
		LongTermMultipliers:  Multipliers{Good: 3.5, Average: 3.25, Poor: 3.0},
		ShortTermMultipliers: Multipliers{Good: 2.0, Average: 1.75, Poor: 1.0},
		RoundUnit:            10_000,
	}
}

// Assess maps a defined metric value onto a band using a threshold pair.
// Undefined values assess to the empty band.
func Assess(v metrics.Value, t Threshold) models.Band {
	if !v.Defined {
		return ""
	}
	switch {
	case v.F <= t.Good:
		return models.BandGood
	case v.F <= t.Avg:
		return models.BandAverage
	default:
		return models.BandPoor
	}
}

// component converts a metric to its score contribution, or excludes it
// entirely when undefined.
func component(v metrics.Value, t Threshold) (float64, bool) {
	if !v.Defined {
		return 0, false
	}
	switch {
	case v.F <= t.Good:
		return 1, true
	case v.F <= t.Avg:
		return 0.5, true
	default:
		return 0, true
	}
}

// Score computes the weighted composite score in [0,1] and its band.
// Undefined metrics contribute neither numerator nor denominator; when no
// component is available the score is 0.
func Score(m metrics.Set, p Policy) (float64, models.Band) {
	var weightedSum, weightTotal float64
	add := func(v metrics.Value, t Threshold) {
		if c, ok := component(v, t); ok {
			weightedSum += c * t.Weight
			weightTotal += t.Weight
		}
	}
	add(m.AvgDaysToPay, p.AvgDaysToPay)
	add(m.WeightedAvgAgeUnpaid, p.WeightedAvgAgeUnpaid)
	add(m.OverdueRate, p.OverdueRate)
	add(m.BlendedDaysToPay, p.BlendedDaysToPay)
	add(m.CheckMaturityOverrun, p.CheckMaturityOverrun)
	add(m.PctChecksOverTerm, p.PctChecksOverTerm)

	score := 0.0
	if weightTotal > 0 {
		score = weightedSum / weightTotal
	}
	return score, BandFor(score)
}

// BandFor maps a normalized score to its risk band.
func BandFor(score float64) models.Band {
	switch {
	case score <= 1.0/3:
		return models.BandPoor
	case score <= 2.0/3:
		return models.BandAverage
	default:
		return models.BandGood
	}
}

// CreditLimit recommends a limit from average monthly purchases, the
// dominant payment term and the risk band, rounded up to the policy's
// round unit. Undefined monthly purchases yield no recommendation.
func CreditLimit(avgMonthlyPurchases metrics.Value, dominantTerm int, band models.Band, p Policy) *decimal.Decimal {
	if !avgMonthlyPurchases.Defined {
		return nil
	}
	mult := p.ShortTermMultipliers
	if dominantTerm >= p.LongTermDays {
		mult = p.LongTermMultipliers
	}
	raw := decimal.NewFromFloat(avgMonthlyPurchases.F * mult.For(band))
	unit := decimal.NewFromInt(p.RoundUnit)
	limit := raw.Div(unit).Ceil().Mul(unit)
	return &limit
}

// AvailableCredit is the headroom left under the limit, floored at zero.
func AvailableCredit(limit *decimal.Decimal, openBalance decimal.Decimal) *decimal.Decimal {
	if limit == nil {
		return nil
	}
	avail := limit.Sub(openBalance)
	if avail.Sign() < 0 {
		avail = decimal.Zero
	}
	return &avail
}
