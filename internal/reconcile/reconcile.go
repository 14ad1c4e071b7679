// Package reconcile allocates payments against invoices first-in-first-out
// and carries unapplied excess forward as advances against later invoices.
//
// Reconcile is a pure function of its inputs: it deep-copies both slices,
// never touches caller-owned data and holds no state between calls.
package reconcile

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"artool/internal/logger"
	"artool/internal/metrics"
	"artool/pkg/models"
)

// Result is the reconciled state handed to the metrics calculator and the
// ledger builder.
type Result struct {
	// Invoices holds the working copies after allocation, synthetic
	// opening row included, sorted by invoice date.
	Invoices []models.Invoice

	// Advances lists every payment remainder that could not be applied in
	// the first pass. Remaining is updated by the carry-forward pass; a
	// positive Remaining after that is a genuinely unapplied prepayment.
	Advances []models.Advance

	// LagWeightSum / LagAmountTotal accumulate the amount-weighted
	// handover lag across all allocations. Advance-settled amounts add
	// weight with zero lag.
	LagWeightSum   float64
	LagAmountTotal float64
}

// Reconcile applies payments to invoices chronologically. beginningBalance,
// when positive, is prepended as a synthetic Opening invoice dated one day
// before startDate. defaultTerm is the globally inferred payment term; it
// seeds every invoice and survives on invoices that never saw a payment
// with a known term.
func Reconcile(invoices []models.Invoice, payments []models.Payment, startDate time.Time, beginningBalance decimal.Decimal, defaultTerm int) Result {
	log := logger.WithComponent("reconcile")

	invs := cloneInvoices(invoices)
	pays := clonePayments(payments)

	for i := range invs {
		invs[i].Term = defaultTerm
	}

	if beginningBalance.Sign() > 0 && !startDate.IsZero() {
		opening := models.Invoice{
			InvoiceDate: startDate.AddDate(0, 0, -1),
			InvoiceNum:  "BEGIN BAL",
			Kind:        models.KindOpening,
			Amount:      beginningBalance,
			Remaining:   beginningBalance,
			Term:        defaultTerm,
		}
		invs = append([]models.Invoice{opening}, invs...)
	}

	sort.SliceStable(invs, func(i, j int) bool { return invs[i].InvoiceDate.Before(invs[j].InvoiceDate) })
	sort.SliceStable(pays, func(i, j int) bool { return pays[i].PaymentDate.Before(pays[j].PaymentDate) })

	res := Result{Invoices: invs}
	res.applyPayments(pays, log)
	res.carryForwardAdvances(log)
	res.finalizeTerms()

	log.Debug().
		Int("invoices", len(res.Invoices)).
		Int("payments", len(pays)).
		Int("advances", len(res.Advances)).
		Msg("reconciliation pass complete")

	return res
}

// applyPayments walks payments in chronological order and applies each to
// the oldest open invoices dated on or before the payment date.
func (r *Result) applyPayments(pays []models.Payment, log zerolog.Logger) {
	for _, p := range pays {
		if !validAmount(p.Amount) {
			log.Warn().Time("payment_date", p.PaymentDate).Msg("payment with invalid amount excluded from allocation")
			continue
		}
		rem := p.Amount
		for i := range r.Invoices {
			inv := &r.Invoices[i]
			if rem.Sign() <= 0 {
				break
			}
			if inv.Paid || inv.InvoiceDate.After(p.PaymentDate) {
				continue
			}
			applied := decimal.Min(inv.Remaining, rem)
			if applied.Sign() <= 0 {
				continue
			}
			r.apply(inv, applied, p.PaymentDate, p.MaturityDate, p.Instrument, p.ExpectedTerm, false)
			rem = rem.Sub(applied)
		}
		if rem.Sign() > 0 {
			r.Advances = append(r.Advances, models.Advance{
				Date:         p.PaymentDate,
				Amount:       rem,
				Remaining:    rem,
				Instrument:   p.Instrument,
				MaturityDate: p.MaturityDate,
				ExpectedTerm: p.ExpectedTerm,
				Reason:       advanceReason(r.Invoices, p.PaymentDate),
			})
		}
	}
}

// carryForwardAdvances applies each advance, oldest first, to invoices
// dated strictly after it. An invoice settled this way was pre-funded, so
// its closing date is its own invoice date and no payment lag accrues.
func (r *Result) carryForwardAdvances(log zerolog.Logger) {
	sort.SliceStable(r.Advances, func(i, j int) bool { return r.Advances[i].Date.Before(r.Advances[j].Date) })
	for ai := range r.Advances {
		adv := &r.Advances[ai]
		rem := adv.Remaining
		for i := range r.Invoices {
			inv := &r.Invoices[i]
			if rem.Sign() <= 0 {
				break
			}
			if !inv.InvoiceDate.After(adv.Date) || inv.Remaining.Sign() <= 0 {
				continue
			}
			applied := decimal.Min(inv.Remaining, rem)
			if applied.Sign() <= 0 {
				continue
			}
			r.apply(inv, applied, adv.Date, adv.MaturityDate, adv.Instrument, adv.ExpectedTerm, true)
			rem = rem.Sub(applied)
		}
		adv.Remaining = rem
		if rem.Sign() > 0 {
			log.Debug().
				Time("date", adv.Date).
				Str("remaining", rem.String()).
				Msg("advance left unapplied after carry-forward")
		}
	}
}

// apply posts one allocation slice to an invoice and updates the lag
// accumulators. fromAdvance marks pre-funded settlements: they contribute
// amount weight with zero lag, and close the invoice at its own date.
func (r *Result) apply(inv *models.Invoice, applied decimal.Decimal, payDate time.Time, maturity *time.Time, instrument models.InstrumentType, expectedTerm *int, fromAdvance bool) {
	inv.Remaining = inv.Remaining.Sub(applied)
	if inv.Remaining.Sign() < 0 { // cannot happen while min() holds
		inv.Remaining = decimal.Zero
	}

	amt, _ := applied.Float64()
	r.LagAmountTotal += amt
	if !fromAdvance {
		lag := math.Max(0, math.Round(payDate.Sub(inv.InvoiceDate).Hours()/24))
		r.LagWeightSum += lag * amt
	}

	inv.Allocations = append(inv.Allocations, models.Allocation{
		Amount:       applied,
		InvoiceDate:  inv.InvoiceDate,
		PaymentDate:  payDate,
		MaturityDate: maturity,
		Instrument:   instrument,
		ExpectedTerm: expectedTerm,
	})

	if inv.Remaining.Sign() == 0 && !inv.Paid {
		inv.Paid = true
		closing := payDate
		if fromAdvance {
			closing = inv.InvoiceDate
		}
		inv.ClosingDate = &closing
	}
}

// finalizeTerms overwrites each non-synthetic invoice's term with the mode
// of the expected terms of the payments applied to it. Invoices with no
// such allocation keep the global default.
func (r *Result) finalizeTerms() {
	for i := range r.Invoices {
		inv := &r.Invoices[i]
		if inv.IsSynthetic() {
			continue
		}
		var terms []int
		for _, a := range inv.Allocations {
			if a.ExpectedTerm != nil {
				terms = append(terms, *a.ExpectedTerm)
			}
		}
		if len(terms) > 0 {
			inv.Term = metrics.Mode(terms, inv.Term)
		}
	}
}

// UnappliedPrepayments filters the advances that still carry a balance
// after carry-forward. Diagnostic only, not an error.
func (r *Result) UnappliedPrepayments() []models.Advance {
	var out []models.Advance
	for _, a := range r.Advances {
		if a.Remaining.Sign() > 0 {
			out = append(out, a)
		}
	}
	return out
}

func advanceReason(invoices []models.Invoice, payDate time.Time) string {
	for _, inv := range invoices {
		if !inv.InvoiceDate.After(payDate) {
			return "overpayment_or_future_invoice"
		}
	}
	return "before_first_invoice"
}

func validAmount(d decimal.Decimal) bool {
	return d.Sign() > 0
}

func cloneInvoices(in []models.Invoice) []models.Invoice {
	out := make([]models.Invoice, len(in))
	copy(out, in)
	for i := range out {
		if len(out[i].Allocations) > 0 {
			out[i].Allocations = append([]models.Allocation(nil), out[i].Allocations...)
		}
	}
	return out
}

func clonePayments(in []models.Payment) []models.Payment {
	out := make([]models.Payment, len(in))
	copy(out, in)
	return out
}
