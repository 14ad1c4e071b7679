package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceKind distinguishes real receivable lines from rows the
// reconciliation engine synthesizes.
type InvoiceKind string

const (
	KindInvoice    InvoiceKind = "Invoice"    // normal receivable line
	KindOpening    InvoiceKind = "Opening"    // synthetic opening-balance row
	KindPrepayment InvoiceKind = "Prepayment" // signed credit row (negative amount)
)

// InstrumentType classifies how a payment was made. Unknown is a
// first-class value, not an empty-string sentinel.
type InstrumentType string

const (
	InstrumentCheck   InstrumentType = "Check"
	InstrumentCard    InstrumentType = "Card"
	InstrumentCash    InstrumentType = "Cash"
	InstrumentUnknown InstrumentType = "Unknown"
)

// Invoice is a single receivable line item.
//
// Created by the normalizer (KindInvoice) or synthesized by the
// reconciliation engine (KindOpening, KindPrepayment). Mutated only during
// reconciliation, read-only afterward.
type Invoice struct {
	InvoiceDate time.Time       `json:"invoice_date"`
	InvoiceNum  string          `json:"invoice_num"`
	Kind        InvoiceKind     `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`    // signed; Prepayment carries a negative amount
	Remaining   decimal.Decimal `json:"remaining"` // 0 <= |remaining| <= |amount|

	// Term is the expected payment term in days. Starts as the globally
	// inferred default and is overwritten with the mode of terms of the
	// payments actually applied to this invoice.
	Term int `json:"term"`

	Paid        bool       `json:"paid"`                   // true iff Remaining is zero
	ClosingDate *time.Time `json:"closing_date,omitempty"` // set exactly once, when Remaining reaches zero

	// RunningBalance is the cumulative unpaid balance up to and including
	// this invoice, assigned after reconciliation.
	RunningBalance *decimal.Decimal `json:"running_balance,omitempty"`

	// Allocations records every payment slice applied to this invoice.
	Allocations []Allocation `json:"allocations,omitempty"`
}

// IsSynthetic reports whether the row was created by the engine rather than
// parsed from the export.
func (inv *Invoice) IsSynthetic() bool {
	switch inv.Kind {
	case KindOpening, KindPrepayment:
		return true
	case KindInvoice:
		return false
	}
	return false
}

// DueDate is the invoice date shifted by its term.
func (inv *Invoice) DueDate() time.Time {
	return inv.InvoiceDate.AddDate(0, 0, inv.Term)
}

// Payment is a receipt/settlement instrument. Immutable once produced by
// the normalizer.
type Payment struct {
	PaymentDate  time.Time       `json:"payment_date"`
	Amount       decimal.Decimal `json:"amount"`
	MaturityDate *time.Time      `json:"maturity_date,omitempty"` // settlement date for deferred instruments
	Instrument   InstrumentType  `json:"instrument"`
	ExpectedTerm *int            `json:"expected_term,omitempty"`
	Description  string          `json:"description,omitempty"`
}

// Deferred reports whether the payment clears at its maturity date rather
// than at handover.
func (p *Payment) Deferred() bool {
	return p.Instrument == InstrumentCheck
}

// Allocation records one (payment, invoice) match made during FIFO
// allocation. The invoice owns its allocations; they feed term inference
// and the check maturity statistics.
type Allocation struct {
	Amount       decimal.Decimal `json:"amount"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	PaymentDate  time.Time       `json:"payment_date"`
	MaturityDate *time.Time      `json:"maturity_date,omitempty"`
	Instrument   InstrumentType  `json:"instrument"`
	ExpectedTerm *int            `json:"expected_term,omitempty"`
}

// Advance is payment amount received before, or in excess of, any invoice
// it could be matched against at the time of receipt.
type Advance struct {
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`    // unallocated amount when the advance was created
	Remaining    decimal.Decimal `json:"remaining"` // still unapplied after the carry-forward pass
	Instrument   InstrumentType  `json:"instrument"`
	MaturityDate *time.Time      `json:"maturity_date,omitempty"`
	ExpectedTerm *int            `json:"expected_term,omitempty"`
	Reason       string          `json:"reason"` // "before_first_invoice" or "overpayment_or_future_invoice"
}

// Input is the normalizer's output contract: clean invoices and payments
// plus the period anchors. The engine requires at least one anchor date.
type Input struct {
	Invoices             []Invoice  `json:"invoices"`
	Payments             []Payment  `json:"payments"`
	FirstInvoiceDate     *time.Time `json:"first_invoice_date,omitempty"`
	FirstTransactionDate *time.Time `json:"first_transaction_date,omitempty"`
}
