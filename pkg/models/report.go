package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Band is the categorical output of the weighted composite score.
type Band string

const (
	BandGood    Band = "Good"
	BandAverage Band = "Average"
	BandPoor    Band = "Poor"
)

// EntryKind classifies a ledger line.
type EntryKind string

const (
	EntryOpening    EntryKind = "Opening"
	EntryInvoice    EntryKind = "Invoice"
	EntryPayment    EntryKind = "Payment"
	EntryPrepayment EntryKind = "Prepayment"
)

// LedgerEntry is one line of the chronological audit ledger. Entries are
// append-only and never mutated once built.
type LedgerEntry struct {
	Date        time.Time       `json:"date"`
	Kind        EntryKind       `json:"kind"`
	Description string          `json:"description"`
	Ref         string          `json:"ref,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// Reconciliation is the conservation cross-check: the ledger's final
// balance against the arithmetic identity. A non-zero Delta signals an
// allocation bug, not a user error.
type Reconciliation struct {
	BeginningBalance    decimal.Decimal `json:"beginning_balance"`
	SumInvoices         decimal.Decimal `json:"sum_invoices"`
	SumPayments         decimal.Decimal `json:"sum_payments"`
	ExpectedOutstanding decimal.Decimal `json:"expected_outstanding"`
	ComputedOutstanding decimal.Decimal `json:"computed_outstanding"`
	Delta               decimal.Decimal `json:"delta"`
}

// MetricRow is one presentation row of the metrics table. Value is
// meaningful only when Defined is true; Percent marks fraction-valued
// metrics for display formatting.
type MetricRow struct {
	Label      string  `json:"label"`
	Value      float64 `json:"value"`
	Defined    bool    `json:"defined"`
	Percent    bool    `json:"percent,omitempty"`
	Assessment Band    `json:"assessment,omitempty"`
}

// TrendPoint is the average days-to-pay of invoices closed in one
// calendar month.
type TrendPoint struct {
	Month        time.Time `json:"month"`
	AvgDaysToPay float64   `json:"avg_days_to_pay"`
}

// Diagnostics replaces the shared debug state of earlier versions of this
// tool with an explicit per-invocation value.
type Diagnostics struct {
	InferredTerm         int                    `json:"inferred_term"`
	Advances             []Advance              `json:"advances,omitempty"`
	UnappliedPrepayments []Advance              `json:"unapplied_prepayments,omitempty"`
	InstrumentCounts     map[InstrumentType]int `json:"instrument_counts,omitempty"`
	SkippedRows          int                    `json:"skipped_rows,omitempty"`
	ColumnConfidence     float64                `json:"column_confidence,omitempty"`
}

// RiskReport is the engine's single output, consumed by presentation,
// export and persistence layers. All dates serialize as RFC 3339 and
// round-trip losslessly.
type RiskReport struct {
	// ID and GeneratedAt identify one exported document. The analysis
	// engine leaves them zero so identical inputs produce identical
	// reports; the export layer stamps them.
	ID          string    `json:"id,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitzero"`

	AsOf      time.Time `json:"as_of"`
	StartDate time.Time `json:"start_date"`

	Invoices     []Invoice          `json:"invoices"`
	Metrics      []MetricRow        `json:"metrics"`
	Aging        [4]decimal.Decimal `json:"aging"` // [0-30] [31-60] [61-90] [91+]
	MonthlyTrend []TrendPoint       `json:"monthly_trend,omitempty"`
	Ledger       []LedgerEntry      `json:"ledger"`

	Reconciliation Reconciliation `json:"reconciliation"`

	Score           float64          `json:"score"`
	Band            Band             `json:"band"`
	CreditLimit     *decimal.Decimal `json:"credit_limit,omitempty"`
	AvailableCredit *decimal.Decimal `json:"available_credit,omitempty"`
	OpenBalance     decimal.Decimal  `json:"open_balance"`

	Diagnostics Diagnostics `json:"diagnostics"`
}
