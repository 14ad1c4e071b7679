// Package metrics derives payment-behavior statistics from a reconciled
// invoice/payment set. Percentage metrics are fractions in [0,1]; day
// metrics stay unrounded until presentation.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"artool/pkg/models"
)

const (
	// canonicalCheckTerm is the reference term for post-dated checks.
	canonicalCheckTerm = 90

	// overdueAfterDays is the handover overdue rule for unpaid invoices.
	overdueAfterDays = 30

	// daysPerMonth converts a day span to calendar months.
	daysPerMonth = 30.44
)

// Value is a scalar metric that may be undefined when its denominator is
// zero. Undefined values are excluded from scoring, not penalized.
type Value struct {
	F       float64
	Defined bool
}

// Def wraps a defined value.
func Def(f float64) Value { return Value{F: f, Defined: true} }

// Undef is the empty marker.
func Undef() Value { return Value{} }

// Set holds every derived metric for one analysis run.
type Set struct {
	AvgDaysToPay         Value // amount-weighted handover lag, advances count as zero lag
	WeightedAvgAgeUnpaid Value
	OverdueRate          Value // count basis, unpaid older than 30 days
	OverdueRateAmount    Value // amount basis of the same rule
	BlendedDaysToPay     Value

	CheckHandoverLag      Value // amount-weighted invoice->payment lag, checks only
	PctChecksHandedLate   Value // amount share of check allocations handed over after 30 days
	CheckMaturityDuration Value // amount-weighted maturity - invoice date
	CheckMaturityOverrun  Value // duration minus the canonical 90-day check term
	PctChecksOverTerm     Value // maturity - payment exceeding the payment's own term

	AvgDaysToSettle     Value // settlement basis: checks clear at maturity, not handover
	PctSettledAfterTerm Value
	PctPaidAfterTerm    Value // handover basis days-to-pay vs the invoice's term

	AvgMonthlyPurchases Value

	Aging        [4]decimal.Decimal
	MonthlyTrend []models.TrendPoint

	// DominantTerm is the most common expected term among payments that
	// carry a maturity date; it drives the credit-limit multiplier.
	DominantTerm int
}

// Inputs is the reconciled state the calculator reads. LagWeightSum and
// LagAmountTotal are the running handover-lag accumulators produced during
// allocation.
type Inputs struct {
	Invoices       []models.Invoice // reconciled, synthetic rows included
	Payments       []models.Payment
	LagWeightSum   float64
	LagAmountTotal float64
	StartDate      time.Time
	AsOf           time.Time
}

// Mode returns the statistical mode of vals, breaking ties in favor of the
// value whose first occurrence is earliest. Returns def for an empty input.
func Mode(vals []int, def int) int {
	counts := make(map[int]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best, bestCount := def, 0
	seen := make(map[int]bool, len(counts))
	for _, v := range vals {
		if seen[v] {
			continue
		}
		seen[v] = true
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

// InferTerm computes the global default payment term: the mode of the
// payments' expected terms when any exist, otherwise the mode of each
// payment's maturity distance snapped to the nearest of 30/60/90,
// otherwise 30.
func InferTerm(payments []models.Payment) int {
	var terms []int
	for _, p := range payments {
		if p.ExpectedTerm != nil {
			terms = append(terms, *p.ExpectedTerm)
		}
	}
	if len(terms) > 0 {
		return Mode(terms, 30)
	}

	var snapped []int
	for _, p := range payments {
		if p.MaturityDate == nil {
			continue
		}
		d := roundDays(p.PaymentDate, *p.MaturityDate)
		if d <= 0 {
			continue
		}
		snapped = append(snapped, snapTerm(d))
	}
	return Mode(snapped, 30)
}

func snapTerm(days int) int {
	best, bestDiff := 30, math.MaxInt
	for _, c := range []int{30, 60, 90} {
		diff := days - c
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best
}

// Compute derives the full metric set from reconciled state.
func Compute(in Inputs) Set {
	var s Set

	display := make([]*models.Invoice, 0, len(in.Invoices))
	for i := range in.Invoices {
		if !in.Invoices[i].IsSynthetic() {
			display = append(display, &in.Invoices[i])
		}
	}
	var paid, unpaid []*models.Invoice
	for _, inv := range display {
		if inv.Paid && inv.ClosingDate != nil {
			paid = append(paid, inv)
		}
		if inv.Remaining.Sign() > 0 {
			unpaid = append(unpaid, inv)
		}
	}

	if in.LagAmountTotal > 0 {
		s.AvgDaysToPay = Def(in.LagWeightSum / in.LagAmountTotal)
	}

	s.computeUnpaid(unpaid, in.AsOf)
	s.computeBlended(display, in.AsOf)
	s.computeChecks(in.Invoices)
	s.computeMaturitySamples(in.Payments)
	s.computeSettlement(paid)
	s.computePaidAfterTerm(paid)
	s.computePurchases(display, in.StartDate, in.AsOf)
	s.computeAging(unpaid, in.AsOf)
	s.MonthlyTrend = monthlyTrend(paid)

	return s
}

func (s *Set) computeUnpaid(unpaid []*models.Invoice, asOf time.Time) {
	sumAgeWeighted := 0.0
	sumRemaining := decimal.Zero
	overdueCount := 0
	overdueAmount := decimal.Zero
	for _, inv := range unpaid {
		age := fracDays(inv.InvoiceDate, asOf)
		rem, _ := inv.Remaining.Float64()
		sumAgeWeighted += age * rem
		sumRemaining = sumRemaining.Add(inv.Remaining)
		if age > overdueAfterDays {
			overdueCount++
			overdueAmount = overdueAmount.Add(inv.Remaining)
		}
	}
	if sumRemaining.Sign() > 0 {
		total, _ := sumRemaining.Float64()
		s.WeightedAvgAgeUnpaid = Def(sumAgeWeighted / total)
		amt, _ := overdueAmount.Float64()
		s.OverdueRateAmount = Def(amt / total)
	}
	if len(unpaid) > 0 {
		s.OverdueRate = Def(float64(overdueCount) / float64(len(unpaid)))
	}
}

func (s *Set) computeBlended(display []*models.Invoice, asOf time.Time) {
	if len(display) == 0 {
		return
	}
	sum := 0.0
	for _, inv := range display {
		end := asOf
		if inv.Paid && inv.ClosingDate != nil {
			end = *inv.ClosingDate
		}
		sum += fracDays(inv.InvoiceDate, end)
	}
	s.BlendedDaysToPay = Def(sum / float64(len(display)))
}

func (s *Set) computeChecks(invoices []models.Invoice) {
	totalAmt, lagWeighted, within30 := 0.0, 0.0, 0.0
	matAmt, matWeighted := 0.0, 0.0
	for i := range invoices {
		for _, a := range invoices[i].Allocations {
			if a.Instrument != models.InstrumentCheck {
				continue
			}
			amt, _ := a.Amount.Float64()
			lag := float64(max(0, roundDays(a.InvoiceDate, a.PaymentDate)))
			totalAmt += amt
			lagWeighted += lag * amt
			if lag <= overdueAfterDays {
				within30 += amt
			}
			if a.MaturityDate != nil {
				dur := roundDays(a.InvoiceDate, *a.MaturityDate)
				if dur > 0 {
					matAmt += amt
					matWeighted += float64(dur) * amt
				}
			}
		}
	}
	if totalAmt > 0 {
		s.CheckHandoverLag = Def(lagWeighted / totalAmt)
		s.PctChecksHandedLate = Def((totalAmt - within30) / totalAmt)
	}
	if matAmt > 0 {
		dur := matWeighted / matAmt
		s.CheckMaturityDuration = Def(dur)
		s.CheckMaturityOverrun = Def(dur - canonicalCheckTerm)
	}
}

// computeMaturitySamples derives the per-payment maturity statistics:
// the share of checks whose maturity runs past their own expected term,
// and the dominant term used by the credit-limit policy.
func (s *Set) computeMaturitySamples(payments []models.Payment) {
	var over, total int
	var expected []int
	for _, p := range payments {
		if p.MaturityDate == nil {
			continue
		}
		d := roundDays(p.PaymentDate, *p.MaturityDate)
		if d <= 0 {
			continue
		}
		term := 30
		if p.ExpectedTerm != nil {
			term = *p.ExpectedTerm
		}
		total++
		expected = append(expected, term)
		if d > term {
			over++
		}
	}
	s.DominantTerm = 30
	if total > 0 {
		s.PctChecksOverTerm = Def(float64(over) / float64(total))
		s.DominantTerm = Mode(expected, 30)
	}
}

// settlementDate is the date a paid invoice actually cleared: the maximum
// across its allocations of the maturity date for deferred instruments and
// the payment date otherwise.
func settlementDate(inv *models.Invoice) (time.Time, bool) {
	if !inv.Paid {
		return time.Time{}, false
	}
	if len(inv.Allocations) == 0 {
		if inv.ClosingDate == nil {
			return time.Time{}, false
		}
		return *inv.ClosingDate, true
	}
	var best time.Time
	for _, a := range inv.Allocations {
		cand := a.PaymentDate
		if a.Instrument == models.InstrumentCheck && a.MaturityDate != nil {
			cand = *a.MaturityDate
		}
		if cand.After(best) {
			best = cand
		}
	}
	return best, true
}

func (s *Set) computeSettlement(paid []*models.Invoice) {
	var sum float64
	var after, n int
	for _, inv := range paid {
		sd, ok := settlementDate(inv)
		if !ok {
			continue
		}
		days := roundDays(inv.InvoiceDate, sd)
		sum += float64(days)
		if days > inv.Term {
			after++
		}
		n++
	}
	if n > 0 {
		s.AvgDaysToSettle = Def(sum / float64(n))
		s.PctSettledAfterTerm = Def(float64(after) / float64(n))
	}
}

func (s *Set) computePaidAfterTerm(paid []*models.Invoice) {
	if len(paid) == 0 {
		return
	}
	after := 0
	for _, inv := range paid {
		if roundDays(inv.InvoiceDate, *inv.ClosingDate) > inv.Term {
			after++
		}
	}
	s.PctPaidAfterTerm = Def(float64(after) / float64(len(paid)))
}

func (s *Set) computePurchases(display []*models.Invoice, startDate, asOf time.Time) {
	months := fracDays(startDate, asOf) / daysPerMonth
	if months <= 0 {
		return
	}
	total := decimal.Zero
	for _, inv := range display {
		total = total.Add(inv.Amount)
	}
	f, _ := total.Float64()
	s.AvgMonthlyPurchases = Def(f / months)
}

func (s *Set) computeAging(unpaid []*models.Invoice, asOf time.Time) {
	for i := range s.Aging {
		s.Aging[i] = decimal.Zero
	}
	for _, inv := range unpaid {
		age := int(math.Floor(fracDays(inv.InvoiceDate, asOf)))
		var b int
		switch {
		case age <= 30:
			b = 0
		case age <= 60:
			b = 1
		case age <= 90:
			b = 2
		default:
			b = 3
		}
		s.Aging[b] = s.Aging[b].Add(inv.Remaining)
	}
}

// monthlyTrend groups paid invoices by closing month and averages their
// days-to-pay, skipping negative deltas as data errors.
func monthlyTrend(paid []*models.Invoice) []models.TrendPoint {
	type acc struct {
		sum float64
		n   int
	}
	byMonth := make(map[time.Time]*acc)
	for _, inv := range paid {
		d2p := roundDays(inv.InvoiceDate, *inv.ClosingDate)
		if d2p < 0 {
			continue
		}
		cd := *inv.ClosingDate
		month := time.Date(cd.Year(), cd.Month(), 1, 0, 0, 0, 0, cd.Location())
		a := byMonth[month]
		if a == nil {
			a = &acc{}
			byMonth[month] = a
		}
		a.sum += float64(d2p)
		a.n++
	}
	if len(byMonth) == 0 {
		return nil
	}
	points := make([]models.TrendPoint, 0, len(byMonth))
	for month, a := range byMonth {
		points = append(points, models.TrendPoint{Month: month, AvgDaysToPay: a.sum / float64(a.n)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Month.Before(points[j].Month) })
	return points
}

// fracDays is the fractional day distance from a to b.
func fracDays(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

// roundDays is the calendar-day distance from a to b, rounded to the
// nearest whole day.
func roundDays(a, b time.Time) int {
	return int(math.Round(fracDays(a, b)))
}
