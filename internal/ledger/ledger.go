// Package ledger rebuilds the chronological account ledger with a running
// balance, for audit and export.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"artool/pkg/models"
)

// Build merges every dated event into one list sorted by date and applies
// it to a running balance: opening and invoice rows debit, payments
// credit, prepayment rows net their signed amount. The returned entries
// are never mutated afterward.
func Build(invoices []models.Invoice, payments []models.Payment) []models.LedgerEntry {
	type event struct {
		entry  models.LedgerEntry
		amount decimal.Decimal
	}
	events := make([]event, 0, len(invoices)+len(payments))

	for _, inv := range invoices {
		kind := models.EntryInvoice
		switch inv.Kind {
		case models.KindOpening:
			kind = models.EntryOpening
		case models.KindPrepayment:
			kind = models.EntryPrepayment
		case models.KindInvoice:
		}
		events = append(events, event{
			entry: models.LedgerEntry{
				Date:        inv.InvoiceDate,
				Kind:        kind,
				Description: string(inv.Kind),
				Ref:         inv.InvoiceNum,
			},
			amount: inv.Amount,
		})
	}
	for _, p := range payments {
		desc := p.Description
		if desc == "" {
			desc = string(p.Instrument)
		}
		events = append(events, event{
			entry: models.LedgerEntry{
				Date:        p.PaymentDate,
				Kind:        models.EntryPayment,
				Description: desc,
			},
			amount: p.Amount,
		})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].entry.Date.Before(events[j].entry.Date) })

	entries := make([]models.LedgerEntry, 0, len(events))
	balance := decimal.Zero
	for _, ev := range events {
		e := ev.entry
		switch e.Kind {
		case models.EntryPayment:
			balance = balance.Sub(ev.amount)
			e.Credit = ev.amount
			e.Debit = decimal.Zero
		case models.EntryPrepayment:
			// Signed netting: negative rows credit, positive rows debit.
			balance = balance.Add(ev.amount)
			if ev.amount.Sign() < 0 {
				e.Credit = ev.amount.Neg()
				e.Debit = decimal.Zero
			} else {
				e.Debit = ev.amount
				e.Credit = decimal.Zero
			}
		case models.EntryOpening, models.EntryInvoice:
			balance = balance.Add(ev.amount)
			e.Debit = ev.amount
			e.Credit = decimal.Zero
		}
		e.Balance = balance
		entries = append(entries, e)
	}
	return entries
}

// Summarize computes the conservation cross-check. SumInvoices covers the
// non-Opening invoice rows (Prepayment rows net their signed amount); the
// expected outstanding is beginningBalance + invoices - payments, and the
// computed outstanding is the ledger's final balance. The two are derived
// independently, so a non-zero delta flags a construction bug.
func Summarize(entries []models.LedgerEntry, invoices []models.Invoice, payments []models.Payment, beginningBalance decimal.Decimal) models.Reconciliation {
	sumInv := decimal.Zero
	for _, inv := range invoices {
		if inv.Kind == models.KindOpening {
			continue
		}
		sumInv = sumInv.Add(inv.Amount)
	}
	sumPay := decimal.Zero
	for _, p := range payments {
		sumPay = sumPay.Add(p.Amount)
	}

	computed := decimal.Zero
	if len(entries) > 0 {
		computed = entries[len(entries)-1].Balance
	}
	expected := beginningBalance.Add(sumInv).Sub(sumPay)

	return models.Reconciliation{
		BeginningBalance:    beginningBalance,
		SumInvoices:         sumInv,
		SumPayments:         sumPay,
		ExpectedOutstanding: expected,
		ComputedOutstanding: computed,
		Delta:               computed.Sub(expected),
	}
}
