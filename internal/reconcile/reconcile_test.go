package reconcile

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

func inv(dayN int, amount int64) models.Invoice {
	return models.Invoice{
		InvoiceDate: day(dayN),
		Kind:        models.KindInvoice,
		Amount:      decimal.NewFromInt(amount),
		Remaining:   decimal.NewFromInt(amount),
	}
}

func pay(dayN int, amount int64, instrument models.InstrumentType) models.Payment {
	return models.Payment{
		PaymentDate: day(dayN),
		Amount:      decimal.NewFromInt(amount),
		Instrument:  instrument,
	}
}

func TestReconcileAppliesOldestInvoiceFirst(t *testing.T) {
	invoices := []models.Invoice{inv(10, 500), inv(0, 300)}
	payments := []models.Payment{pay(20, 600, models.InstrumentCash)}

	res := Reconcile(invoices, payments, day(0), decimal.Zero, 30)

	require.Len(t, res.Invoices, 2)
	first, second := res.Invoices[0], res.Invoices[1]
	assert.True(t, first.InvoiceDate.Before(second.InvoiceDate))

	// Oldest invoice settles in full, the newer one takes the rest.
	assert.True(t, first.Paid)
	require.NotNil(t, first.ClosingDate)
	assert.Equal(t, day(20), *first.ClosingDate)
	assert.False(t, second.Paid)
	assert.True(t, second.Remaining.Equal(decimal.NewFromInt(200)), "remaining = %s", second.Remaining)

	assert.Empty(t, res.Advances)
}

func TestReconcilePaymentCannotSatisfyFutureInvoice(t *testing.T) {
	invoices := []models.Invoice{inv(30, 1000)}
	payments := []models.Payment{pay(10, 1000, models.InstrumentCash)}

	res := Reconcile(invoices, payments, day(0), decimal.Zero, 30)

	// First pass skips the future invoice; the carry-forward pass funds it.
	require.Len(t, res.Advances, 1)
	adv := res.Advances[0]
	assert.Equal(t, day(10), adv.Date)
	assert.Equal(t, "before_first_invoice", adv.Reason)
	assert.True(t, adv.Remaining.IsZero(), "advance should be consumed, remaining = %s", adv.Remaining)

	settled := res.Invoices[0]
	assert.True(t, settled.Paid)
	require.NotNil(t, settled.ClosingDate)
	assert.Equal(t, settled.InvoiceDate, *settled.ClosingDate, "pre-funded invoice closes at its own date")

	// No handover lag is attributable to a pre-funded settlement.
	assert.Zero(t, res.LagWeightSum)
	assert.InDelta(t, 1000, res.LagAmountTotal, 0.001)
}

func TestReconcileOverpaymentBecomesAdvance(t *testing.T) {
	invoices := []models.Invoice{inv(0, 400)}
	payments := []models.Payment{pay(5, 1000, models.InstrumentCash)}

	res := Reconcile(invoices, payments, day(0), decimal.Zero, 30)

	require.Len(t, res.Advances, 1)
	assert.Equal(t, "overpayment_or_future_invoice", res.Advances[0].Reason)
	assert.True(t, res.Advances[0].Remaining.Equal(decimal.NewFromInt(600)))

	unapplied := res.UnappliedPrepayments()
	require.Len(t, unapplied, 1)
	assert.True(t, unapplied[0].Remaining.Equal(decimal.NewFromInt(600)))
}

func TestReconcileSynthesizesOpeningInvoice(t *testing.T) {
	res := Reconcile(nil, nil, day(10), decimal.NewFromInt(5000), 30)

	require.Len(t, res.Invoices, 1)
	opening := res.Invoices[0]
	assert.Equal(t, models.KindOpening, opening.Kind)
	assert.Equal(t, day(9), opening.InvoiceDate)
	assert.Equal(t, "BEGIN BAL", opening.InvoiceNum)
	assert.True(t, opening.Remaining.Equal(decimal.NewFromInt(5000)))
	assert.True(t, opening.IsSynthetic())
}

func TestReconcileOpeningParticipatesInFIFO(t *testing.T) {
	invoices := []models.Invoice{inv(12, 1000)}
	payments := []models.Payment{pay(15, 5500, models.InstrumentCash)}

	res := Reconcile(invoices, payments, day(10), decimal.NewFromInt(5000), 30)

	require.Len(t, res.Invoices, 2)
	opening := res.Invoices[0]
	real := res.Invoices[1]
	assert.Equal(t, models.KindOpening, opening.Kind)
	assert.True(t, opening.Paid, "opening balance settles first")
	assert.False(t, real.Paid)
	assert.True(t, real.Remaining.Equal(decimal.NewFromInt(500)))
}

func TestReconcileHandoverLagIsAmountWeighted(t *testing.T) {
	invoices := []models.Invoice{inv(0, 1000)}
	payments := []models.Payment{
		pay(10, 600, models.InstrumentCash),
		pay(40, 400, models.InstrumentCash),
	}

	res := Reconcile(invoices, payments, day(0), decimal.Zero, 30)

	assert.InDelta(t, 10*600+40*400, res.LagWeightSum, 0.001)
	assert.InDelta(t, 1000, res.LagAmountTotal, 0.001)
}

func TestReconcileRecordsCheckAllocations(t *testing.T) {
	maturity := day(100)
	term := 90
	invoices := []models.Invoice{inv(0, 500)}
	payments := []models.Payment{{
		PaymentDate:  day(10),
		Amount:       decimal.NewFromInt(500),
		MaturityDate: &maturity,
		Instrument:   models.InstrumentCheck,
		ExpectedTerm: &term,
	}}

	res := Reconcile(invoices, payments, day(0), decimal.Zero, 30)

	settled := res.Invoices[0]
	require.Len(t, settled.Allocations, 1)
	a := settled.Allocations[0]
	assert.Equal(t, models.InstrumentCheck, a.Instrument)
	require.NotNil(t, a.MaturityDate)
	assert.Equal(t, maturity, *a.MaturityDate)
	require.NotNil(t, a.ExpectedTerm)
	assert.Equal(t, 90, *a.ExpectedTerm)
	assert.Equal(t, 90, settled.Term, "term overwritten by applied payment term")
}

func TestReconcileTermModeTieBreaksFirstSeen(t *testing.T) {
	t30, t60 := 30, 60
	invoices := []models.Invoice{inv(0, 1000)}
	payments := []models.Payment{
		{PaymentDate: day(5), Amount: decimal.NewFromInt(400), Instrument: models.InstrumentCash, ExpectedTerm: &t60},
		{PaymentDate: day(6), Amount: decimal.NewFromInt(600), Instrument: models.InstrumentCash, ExpectedTerm: &t30},
	}

	res := Reconcile(invoices, payments, day(0), decimal.Zero, 30)

	assert.Equal(t, 60, res.Invoices[0].Term)
}

func TestReconcileInvalidPaymentAmountExcluded(t *testing.T) {
	invoices := []models.Invoice{inv(0, 1000)}
	payments := []models.Payment{
		{PaymentDate: day(5), Amount: decimal.NewFromInt(-50), Instrument: models.InstrumentCash},
		pay(10, 1000, models.InstrumentCash),
	}

	res := Reconcile(invoices, payments, day(0), decimal.Zero, 30)

	assert.True(t, res.Invoices[0].Paid)
	assert.Empty(t, res.Advances)
}

func TestReconcileDoesNotMutateCallerSlices(t *testing.T) {
	invoices := []models.Invoice{inv(0, 1000)}
	payments := []models.Payment{pay(10, 1000, models.InstrumentCash)}

	_ = Reconcile(invoices, payments, day(0), decimal.Zero, 30)

	assert.False(t, invoices[0].Paid)
	assert.True(t, invoices[0].Remaining.Equal(decimal.NewFromInt(1000)))
	assert.Nil(t, invoices[0].ClosingDate)
	assert.Empty(t, invoices[0].Allocations)
}

func TestReconcileIsIdempotent(t *testing.T) {
	term := 90
	maturity := day(95)
	invoices := []models.Invoice{inv(0, 700), inv(20, 300), inv(50, 900)}
	payments := []models.Payment{
		pay(5, 200, models.InstrumentCash),
		{PaymentDate: day(30), Amount: decimal.NewFromInt(800), MaturityDate: &maturity, Instrument: models.InstrumentCheck, ExpectedTerm: &term},
		pay(40, 1500, models.InstrumentCard),
	}

	first := Reconcile(invoices, payments, day(0), decimal.NewFromInt(250), 30)
	second := Reconcile(invoices, payments, day(0), decimal.NewFromInt(250), 30)

	assert.Equal(t, first, second)
}

func TestReconcileConservation(t *testing.T) {
	term := 60
	invoices := []models.Invoice{inv(0, 700), inv(10, 300), inv(90, 450)}
	payments := []models.Payment{
		pay(5, 400, models.InstrumentCash),
		{PaymentDate: day(15), Amount: decimal.NewFromInt(900), Instrument: models.InstrumentCard, ExpectedTerm: &term},
		pay(20, 500, models.InstrumentUnknown),
	}

	res := Reconcile(invoices, payments, day(0), decimal.Zero, 30)

	sumAmount, sumRemaining := decimal.Zero, decimal.Zero
	for _, i := range res.Invoices {
		sumAmount = sumAmount.Add(i.Amount)
		sumRemaining = sumRemaining.Add(i.Remaining)
		assert.Equal(t, i.Remaining.IsZero(), i.Paid, "paid iff remaining zero")
		assert.True(t, i.Remaining.Sign() >= 0, "remaining never negative")
	}
	sumPaid, sumUnapplied := decimal.Zero, decimal.Zero
	for _, p := range payments {
		sumPaid = sumPaid.Add(p.Amount)
	}
	for _, a := range res.Advances {
		sumUnapplied = sumUnapplied.Add(a.Remaining)
	}

	applied := sumAmount.Sub(sumRemaining)
	assert.True(t, applied.Equal(sumPaid.Sub(sumUnapplied)),
		"allocated %s should equal paid %s minus unapplied %s", applied, sumPaid, sumUnapplied)
}
