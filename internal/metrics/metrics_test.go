package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artool/pkg/models"
)

func day(n int) time.Time {
	return time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func paidInvoice(invDay, closeDay int, amount int64) models.Invoice {
	cd := day(closeDay)
	return models.Invoice{
		InvoiceDate: day(invDay),
		Kind:        models.KindInvoice,
		Amount:      decimal.NewFromInt(amount),
		Remaining:   decimal.Zero,
		Paid:        true,
		ClosingDate: &cd,
		Term:        30,
	}
}

func openInvoice(invDay int, amount int64) models.Invoice {
	return models.Invoice{
		InvoiceDate: day(invDay),
		Kind:        models.KindInvoice,
		Amount:      decimal.NewFromInt(amount),
		Remaining:   decimal.NewFromInt(amount),
		Term:        30,
	}
}

func TestModeFirstSeenTieBreak(t *testing.T) {
	assert.Equal(t, 60, Mode([]int{60, 30, 30, 60}, 0))
	assert.Equal(t, 30, Mode([]int{30, 60, 60, 30}, 0))
	assert.Equal(t, 90, Mode([]int{90}, 0))
	assert.Equal(t, 45, Mode(nil, 45))
}

func TestInferTermPrefersExpectedTerms(t *testing.T) {
	t60, t90 := 60, 90
	mat := day(100)
	payments := []models.Payment{
		{PaymentDate: day(0), ExpectedTerm: &t60},
		{PaymentDate: day(1), ExpectedTerm: &t60},
		{PaymentDate: day(2), ExpectedTerm: &t90, MaturityDate: &mat},
	}
	assert.Equal(t, 60, InferTerm(payments))
}

func TestInferTermSnapsMaturityDistances(t *testing.T) {
	m1 := day(40) // 40 days out -> snaps to 30
	m2 := day(95) // 85 days out -> snaps to 90
	m3 := day(98) // 88 days out -> snaps to 90
	payments := []models.Payment{
		{PaymentDate: day(10), MaturityDate: &m1},
		{PaymentDate: day(10), MaturityDate: &m2},
		{PaymentDate: day(10), MaturityDate: &m3},
	}
	assert.Equal(t, 90, InferTerm(payments))
}

func TestInferTermDefaultsTo30(t *testing.T) {
	assert.Equal(t, 30, InferTerm(nil))

	past := day(-5) // maturity before payment is ignored
	assert.Equal(t, 30, InferTerm([]models.Payment{{PaymentDate: day(0), MaturityDate: &past}}))
}

func TestComputeUnpaidAgeAndOverdue(t *testing.T) {
	invoices := []models.Invoice{
		openInvoice(0, 1000), // 45 days old at asOf
		openInvoice(30, 500), // 15 days old, not overdue
	}
	s := Compute(Inputs{Invoices: invoices, StartDate: day(0), AsOf: day(45)})

	require.True(t, s.WeightedAvgAgeUnpaid.Defined)
	assert.InDelta(t, (45.0*1000+15.0*500)/1500, s.WeightedAvgAgeUnpaid.F, 0.001)

	require.True(t, s.OverdueRate.Defined)
	assert.InDelta(t, 0.5, s.OverdueRate.F, 0.001)
	require.True(t, s.OverdueRateAmount.Defined)
	assert.InDelta(t, 1000.0/1500, s.OverdueRateAmount.F, 0.001)

	assert.True(t, s.Aging[0].Equal(decimal.NewFromInt(500)), "1-30 bucket")
	assert.True(t, s.Aging[1].Equal(decimal.NewFromInt(1000)), "31-60 bucket")
	assert.True(t, s.Aging[2].IsZero())
	assert.True(t, s.Aging[3].IsZero())
}

func TestComputeBlendedMixesPaidAndOpen(t *testing.T) {
	invoices := []models.Invoice{
		paidInvoice(0, 20, 1000), // 20 days to close
		openInvoice(10, 500),     // 40 days old at asOf
	}
	s := Compute(Inputs{Invoices: invoices, StartDate: day(0), AsOf: day(50)})

	require.True(t, s.BlendedDaysToPay.Defined)
	assert.InDelta(t, 30, s.BlendedDaysToPay.F, 0.001)
}

func TestComputeExcludesSyntheticRows(t *testing.T) {
	opening := models.Invoice{
		InvoiceDate: day(-1),
		Kind:        models.KindOpening,
		Amount:      decimal.NewFromInt(9999),
		Remaining:   decimal.NewFromInt(9999),
	}
	s := Compute(Inputs{Invoices: []models.Invoice{opening}, StartDate: day(0), AsOf: day(45)})

	assert.False(t, s.WeightedAvgAgeUnpaid.Defined)
	assert.False(t, s.OverdueRate.Defined)
	assert.False(t, s.BlendedDaysToPay.Defined)
	assert.True(t, s.Aging[1].IsZero())
}

func TestComputeCheckMetrics(t *testing.T) {
	term := 90
	mat := day(110)
	inv := paidInvoice(0, 10, 1000)
	inv.Allocations = []models.Allocation{{
		Amount:       decimal.NewFromInt(1000),
		InvoiceDate:  day(0),
		PaymentDate:  day(10),
		MaturityDate: &mat,
		Instrument:   models.InstrumentCheck,
		ExpectedTerm: &term,
	}}
	payments := []models.Payment{{
		PaymentDate:  day(10),
		Amount:       decimal.NewFromInt(1000),
		MaturityDate: &mat,
		Instrument:   models.InstrumentCheck,
		ExpectedTerm: &term,
	}}

	s := Compute(Inputs{Invoices: []models.Invoice{inv}, Payments: payments, StartDate: day(0), AsOf: day(120)})

	require.True(t, s.CheckHandoverLag.Defined)
	assert.InDelta(t, 10, s.CheckHandoverLag.F, 0.001)
	require.True(t, s.PctChecksHandedLate.Defined)
	assert.InDelta(t, 0, s.PctChecksHandedLate.F, 0.001)

	require.True(t, s.CheckMaturityDuration.Defined)
	assert.InDelta(t, 110, s.CheckMaturityDuration.F, 0.001)
	require.True(t, s.CheckMaturityOverrun.Defined)
	assert.InDelta(t, 20, s.CheckMaturityOverrun.F, 0.001)

	// maturity - payment = 100 days against a 90-day term: over.
	require.True(t, s.PctChecksOverTerm.Defined)
	assert.InDelta(t, 1, s.PctChecksOverTerm.F, 0.001)
	assert.Equal(t, 90, s.DominantTerm)
}

func TestComputeSettlementUsesMaturityForChecks(t *testing.T) {
	term := 90
	mat := day(100)
	inv := paidInvoice(0, 10, 1000)
	inv.Term = 90
	inv.Allocations = []models.Allocation{
		{
			Amount:      decimal.NewFromInt(400),
			InvoiceDate: day(0),
			PaymentDate: day(5),
			Instrument:  models.InstrumentCash,
		},
		{
			Amount:       decimal.NewFromInt(600),
			InvoiceDate:  day(0),
			PaymentDate:  day(10),
			MaturityDate: &mat,
			Instrument:   models.InstrumentCheck,
			ExpectedTerm: &term,
		},
	}

	s := Compute(Inputs{Invoices: []models.Invoice{inv}, StartDate: day(0), AsOf: day(120)})

	// Settlement waits for the check to clear at day 100.
	require.True(t, s.AvgDaysToSettle.Defined)
	assert.InDelta(t, 100, s.AvgDaysToSettle.F, 0.001)
	require.True(t, s.PctSettledAfterTerm.Defined)
	assert.InDelta(t, 1, s.PctSettledAfterTerm.F, 0.001)

	// Handover basis closed at day 10, inside the 90-day term.
	require.True(t, s.PctPaidAfterTerm.Defined)
	assert.InDelta(t, 0, s.PctPaidAfterTerm.F, 0.001)
}

func TestComputeAvgMonthlyPurchases(t *testing.T) {
	invoices := []models.Invoice{
		paidInvoice(0, 10, 3044),
		openInvoice(20, 3044),
	}
	// 60.88 days = exactly 2.0 months at 30.44 days per month.
	asOf := day(0).Add(time.Duration(60.88 * 24 * float64(time.Hour)))
	s := Compute(Inputs{Invoices: invoices, StartDate: day(0), AsOf: asOf})

	require.True(t, s.AvgMonthlyPurchases.Defined)
	assert.InDelta(t, 3044, s.AvgMonthlyPurchases.F, 0.01)
}

func TestComputeAvgMonthlyPurchasesUndefinedWithoutSpan(t *testing.T) {
	s := Compute(Inputs{Invoices: []models.Invoice{openInvoice(0, 100)}, StartDate: day(0), AsOf: day(0)})
	assert.False(t, s.AvgMonthlyPurchases.Defined)
}

func TestMonthlyTrendGroupsByClosingMonth(t *testing.T) {
	invoices := []models.Invoice{
		paidInvoice(0, 10, 100),  // closes Jan 11, 10 days
		paidInvoice(0, 20, 100),  // closes Jan 21, 20 days
		paidInvoice(30, 70, 100), // closes Mar 12, 40 days
	}
	s := Compute(Inputs{Invoices: invoices, StartDate: day(0), AsOf: day(120)})

	require.Len(t, s.MonthlyTrend, 2)
	jan, mar := s.MonthlyTrend[0], s.MonthlyTrend[1]
	assert.Equal(t, time.January, jan.Month.Month())
	assert.InDelta(t, 15, jan.AvgDaysToPay, 0.001)
	assert.Equal(t, time.March, mar.Month.Month())
	assert.InDelta(t, 40, mar.AvgDaysToPay, 0.001)
	assert.True(t, jan.Month.Before(mar.Month))
}

func TestAgingBucketBoundaries(t *testing.T) {
	invoices := []models.Invoice{
		openInvoice(90, 1), // 30 days old: first bucket, inclusive edge
		openInvoice(89, 2), // 31 days old
		openInvoice(60, 4), // 60 days old
		openInvoice(59, 8), // 61 days old
		openInvoice(0, 16), // 120 days old
	}
	s := Compute(Inputs{Invoices: invoices, StartDate: day(0), AsOf: day(120)})

	assert.True(t, s.Aging[0].Equal(decimal.NewFromInt(1)))
	assert.True(t, s.Aging[1].Equal(decimal.NewFromInt(2+4)))
	assert.True(t, s.Aging[2].Equal(decimal.NewFromInt(8)))
	assert.True(t, s.Aging[3].Equal(decimal.NewFromInt(16)))
}

func TestAvgDaysToPayFromAccumulators(t *testing.T) {
	s := Compute(Inputs{LagWeightSum: 45000, LagAmountTotal: 1500, StartDate: day(0), AsOf: day(1)})
	require.True(t, s.AvgDaysToPay.Defined)
	assert.InDelta(t, 30, s.AvgDaysToPay.F, 0.001)

	s = Compute(Inputs{StartDate: day(0), AsOf: day(1)})
	assert.False(t, s.AvgDaysToPay.Defined)
}
