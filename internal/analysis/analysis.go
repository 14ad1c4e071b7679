// Package analysis assembles the full credit-risk report: it runs the
// reconciliation engine, derives the metric set, scores it and rebuilds
// the audit ledger. Run is a pure function of its inputs and holds no
// state between calls.
package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"artool/internal/ledger"
	"artool/internal/logger"
	"artool/internal/metrics"
	"artool/internal/reconcile"
	"artool/internal/risk"
	"artool/pkg/models"
)

// Options controls one analysis run.
type Options struct {
	// AsOf is the evaluation date ("today"). Zero means time.Now().
	AsOf time.Time

	// BeginningBalance is the receivable balance carried into the period;
	// a positive value synthesizes an Opening invoice.
	BeginningBalance decimal.Decimal

	// Policy holds the scoring thresholds and credit-limit constants.
	// The zero value is replaced with risk.DefaultPolicy().
	Policy *risk.Policy

	// SkippedRows and ColumnConfidence are threaded through from the
	// normalizer into the report diagnostics.
	SkippedRows      int
	ColumnConfidence float64
}

// Run reconciles the input and produces the risk report. Identical inputs
// produce identical reports; document identity (ID, GeneratedAt) is stamped
// by the exporter, not here.
func Run(in models.Input, opts Options) (*models.RiskReport, error) {
	const op = "analysis.Run"
	log := logger.WithComponent("analysis")

	startDate, err := startDateFor(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	policy := risk.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	defaultTerm := metrics.InferTerm(in.Payments)
	rec := reconcile.Reconcile(in.Invoices, in.Payments, startDate, opts.BeginningBalance, defaultTerm)

	set := metrics.Compute(metrics.Inputs{
		Invoices:       rec.Invoices,
		Payments:       in.Payments,
		LagWeightSum:   rec.LagWeightSum,
		LagAmountTotal: rec.LagAmountTotal,
		StartDate:      startDate,
		AsOf:           asOf,
	})

	score, band := risk.Score(set, policy)
	openBalance := openBalanceOf(rec.Invoices)
	creditLimit := risk.CreditLimit(set.AvgMonthlyPurchases, set.DominantTerm, band, policy)
	available := risk.AvailableCredit(creditLimit, openBalance)

	entries := ledger.Build(rec.Invoices, in.Payments)
	summary := ledger.Summarize(entries, rec.Invoices, in.Payments, opts.BeginningBalance)
	if summary.Delta.Sign() != 0 {
		log.Warn().Str("delta", summary.Delta.String()).Msg("reconciliation delta is non-zero")
	}

	display := assignRunningBalances(rec.Invoices)

	report := &models.RiskReport{
		AsOf:           asOf,
		StartDate:      startDate,
		Invoices:       display,
		Metrics:        metricRows(set, policy, band, creditLimit, display, asOf),
		Aging:          set.Aging,
		MonthlyTrend:   set.MonthlyTrend,
		Ledger:         entries,
		Reconciliation: summary,
		Score:          score,
		Band:           band,
		CreditLimit:    creditLimit,
		AvailableCredit: available,
		OpenBalance:    openBalance,
		Diagnostics: models.Diagnostics{
			InferredTerm:         defaultTerm,
			Advances:             rec.Advances,
			UnappliedPrepayments: rec.UnappliedPrepayments(),
			InstrumentCounts:     instrumentCounts(in.Payments),
			SkippedRows:          opts.SkippedRows,
			ColumnConfidence:     opts.ColumnConfidence,
		},
	}

	log.Info().
		Int("invoices", len(display)).
		Int("payments", len(in.Payments)).
		Float64("score", score).
		Str("band", string(band)).
		Msg("analysis complete")

	return report, nil
}

// startDateFor anchors the period on the earliest invoice date, falling
// back to the earliest transaction date.
func startDateFor(in models.Input) (time.Time, error) {
	if in.FirstInvoiceDate != nil && !in.FirstInvoiceDate.IsZero() {
		return *in.FirstInvoiceDate, nil
	}
	if in.FirstTransactionDate != nil && !in.FirstTransactionDate.IsZero() {
		return *in.FirstTransactionDate, nil
	}
	return time.Time{}, ErrNoDatedRows
}

// openBalanceOf is the outstanding receivable: the sum of remaining
// balances across all invoices, the synthetic opening row included.
func openBalanceOf(invoices []models.Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.Remaining)
	}
	return total
}

// assignRunningBalances filters out synthetic rows and stamps each real
// invoice with the cumulative unpaid balance up to it.
func assignRunningBalances(invoices []models.Invoice) []models.Invoice {
	display := make([]models.Invoice, 0, len(invoices))
	run := decimal.Zero
	for _, inv := range invoices {
		if inv.IsSynthetic() {
			continue
		}
		run = run.Add(inv.Remaining)
		r := run
		inv.RunningBalance = &r
		display = append(display, inv)
	}
	return display
}

func instrumentCounts(payments []models.Payment) map[models.InstrumentType]int {
	if len(payments) == 0 {
		return nil
	}
	counts := make(map[models.InstrumentType]int)
	for _, p := range payments {
		counts[p.Instrument]++
	}
	return counts
}

// metricRows builds the presentation table. Day values are rounded here
// and nowhere earlier.
func metricRows(set metrics.Set, p risk.Policy, band models.Band, creditLimit *decimal.Decimal, display []models.Invoice, asOf time.Time) []models.MetricRow {
	rows := []models.MetricRow{
		dayRow("Average Days to Pay (Handover)", set.AvgDaysToPay, risk.Assess(set.AvgDaysToPay, p.AvgDaysToPay)),
		dayRow("Weighted Avg Age of Unpaid Invoices (Days)", set.WeightedAvgAgeUnpaid, risk.Assess(set.WeightedAvgAgeUnpaid, p.WeightedAvgAgeUnpaid)),
		pctRow("% of Unpaid Invoices Overdue", set.OverdueRate, risk.Assess(set.OverdueRate, p.OverdueRate)),
		pctRow("% of Unpaid Balance Overdue", set.OverdueRateAmount, ""),
		dayRow("Blended Avg Days to Pay (Days)", set.BlendedDaysToPay, risk.Assess(set.BlendedDaysToPay, p.BlendedDaysToPay)),
		dayRow("Average Check Maturity Duration (Days)", set.CheckMaturityDuration, ""),
		dayRow("Avg Maturity Over By (Days)", set.CheckMaturityOverrun, risk.Assess(set.CheckMaturityOverrun, p.CheckMaturityOverrun)),
		pctRow("% of Checks Over Term", set.PctChecksOverTerm, risk.Assess(set.PctChecksOverTerm, p.PctChecksOverTerm)),
		pctRow("% of Checks Handed Over Late", set.PctChecksHandedLate, ""),
		dayRow("Average Days to Settle (Days)", set.AvgDaysToSettle, ""),
		pctRow("% of Invoices Settled After Term", set.PctSettledAfterTerm, ""),
		pctRow("% of Payments Delivered After Term", set.PctPaidAfterTerm, risk.Assess(set.PctPaidAfterTerm, p.PctPaidAfterTerm)),
		{Label: "Customer Risk Rating", Assessment: band},
	}

	overdueVsLimit := overdueVsCreditLimit(display, creditLimit, asOf)
	rows = append(rows, pctRow("Overdue Balance as % of Credit Limit", overdueVsLimit, risk.Assess(overdueVsLimit, p.OverdueVsLimit)))

	rows = append(rows, models.MetricRow{
		Label:   "Average Monthly Purchases",
		Value:   set.AvgMonthlyPurchases.F,
		Defined: set.AvgMonthlyPurchases.Defined,
	})
	limitRow := models.MetricRow{Label: "Credit Limit"}
	if creditLimit != nil {
		limitRow.Value, _ = creditLimit.Float64()
		limitRow.Defined = true
	}
	return append(rows, limitRow)
}

// overdueVsCreditLimit is the term-based overdue remaining balance as a
// share of the recommended credit limit.
func overdueVsCreditLimit(display []models.Invoice, creditLimit *decimal.Decimal, asOf time.Time) metrics.Value {
	if creditLimit == nil || creditLimit.Sign() <= 0 {
		return metrics.Undef()
	}
	overdue := decimal.Zero
	for _, inv := range display {
		if inv.Remaining.Sign() <= 0 {
			continue
		}
		ageDays := math.Round(asOf.Sub(inv.InvoiceDate).Hours() / 24)
		if ageDays > float64(inv.Term) {
			overdue = overdue.Add(inv.Remaining)
		}
	}
	ratio, _ := overdue.Div(*creditLimit).Float64()
	return metrics.Def(ratio)
}

func dayRow(label string, v metrics.Value, assess models.Band) models.MetricRow {
	row := models.MetricRow{Label: label, Defined: v.Defined, Assessment: assess}
	if v.Defined {
		row.Value = roundDay(v.F)
	}
	return row
}

func pctRow(label string, v metrics.Value, assess models.Band) models.MetricRow {
	return models.MetricRow{Label: label, Value: v.F, Defined: v.Defined, Percent: true, Assessment: assess}
}

func roundDay(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return float64(int64(f - 0.5))
}
