// Package normalize turns a raw, multi-language spreadsheet grid into the
// clean invoice/payment model the analysis engine consumes. Header
// detection is a scoring strategy: it returns a best-guess column mapping
// plus a confidence so callers can treat weak mappings explicitly.
package normalize

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"artool/internal/logger"
	"artool/pkg/models"
)

// Header aliases in EN/TR/AR, lowercased.
var (
	creditNames = []string{
		"credit", "alacak", "alacaklar", "invoice", "fatura", "fatura tutari", "fatura miktari",
		"دائن", "فاتورة", "قيمة الفاتورة",
	}
	debitNames = []string{
		"debit", "borç", "borclar", "payment", "ödeme", "tahsilat", "odeme",
		"مدين", "دفعة", "سداد", "تحصيل",
	}
	descNames = []string{
		"description", "açıklama", "açiklama", "aciklama", "desc", "not", "memo",
		"الوصف", "شرح", "بيان",
	}
	dateNames = []string{
		"date", "tarih",
		"تاريخ", "التاريخ",
	}
	payTypeNames = []string{
		"pay type", "payment type", "odeme tipi", "ödeme tipi", "odeme turu", "ödeme türü", "tahsilat tipi", "paytype",
		"نوع الدفع", "طريقة الدفع", "نوع السداد",
	}
	maturityNames = []string{
		"vade", "vade tarihi", "maturity", "maturity date", "due date", "son ödeme", "son odeme", "vadesi",
	}
)

// ColumnMap is the detected layout of the export grid. Indices are
// zero-based; -1 marks a column that could not be located.
type ColumnMap struct {
	Date     int
	Debit    int
	Credit   int
	PayType  int
	Maturity int
	Desc     []int

	// InvoiceFromDebit is the debit/credit orientation: when true, debit
	// cells are invoices and credit cells are payments.
	InvoiceFromDebit bool

	// Confidence in [0,1] over the detected mapping.
	Confidence float64
}

// Stats reports what the normalizer absorbed instead of failing on.
type Stats struct {
	Columns     ColumnMap
	SkippedRows int
}

var invoiceNumPattern = regexp.MustCompile(`(No\s*\S+|\b[A-Z0-9\-]{6,}\b)`)

// Normalize parses the grid (header row first) into invoices, payments
// and the period anchors. Rows that fail the input contract are skipped
// and counted, never fatal.
func Normalize(grid [][]string) (models.Input, Stats) {
	log := logger.WithComponent("normalize")

	var in models.Input
	if len(grid) < 2 {
		return in, Stats{Columns: emptyColumns()}
	}

	cols := DetectColumns(grid)
	stats := Stats{Columns: cols}

	log.Debug().
		Int("date_col", cols.Date).
		Int("debit_col", cols.Debit).
		Int("credit_col", cols.Credit).
		Int("pay_type_col", cols.PayType).
		Int("maturity_col", cols.Maturity).
		Bool("invoice_from_debit", cols.InvoiceFromDebit).
		Float64("confidence", cols.Confidence).
		Msg("column mapping detected")

	for rowNum, row := range grid[1:] {
		if !parseRow(row, cols, &in, log) {
			stats.SkippedRows++
			log.Debug().Int("row", rowNum+2).Msg("row skipped, no usable invoice or payment")
		}
	}

	log.Info().
		Int("invoices", len(in.Invoices)).
		Int("payments", len(in.Payments)).
		Int("skipped_rows", stats.SkippedRows).
		Msg("grid normalized")

	return in, stats
}

// parseRow extracts an invoice and/or a payment from one data row and
// updates the period anchors. Returns false when the row yields neither.
func parseRow(row []string, cols ColumnMap, in *models.Input, log zerolog.Logger) bool {
	creditAmt, creditOK := ParseAmount(cell(row, cols.Credit))
	debitAmt, debitOK := ParseAmount(cell(row, cols.Debit))
	desc := firstDesc(row, cols.Desc)

	date, dateOK := ParseDate(cell(row, cols.Date))
	if !dateOK {
		date, dateOK = ExtractDate(desc)
	}
	if !dateOK {
		return false
	}

	invAmt, invOK := debitAmt, debitOK
	payAmt, payOK := creditAmt, creditOK
	if !cols.InvoiceFromDebit {
		invAmt, invOK = creditAmt, creditOK
		payAmt, payOK = debitAmt, debitOK
	}

	used := false
	if invOK && invAmt.Sign() > 0 {
		in.Invoices = append(in.Invoices, models.Invoice{
			InvoiceDate: date,
			InvoiceNum:  invoiceNumPattern.FindString(desc),
			Kind:        models.KindInvoice,
			Amount:      invAmt,
			Remaining:   invAmt,
		})
		if in.FirstInvoiceDate == nil || date.Before(*in.FirstInvoiceDate) {
			d := date
			in.FirstInvoiceDate = &d
		}
		used = true
	}

	if payOK && payAmt.Sign() > 0 {
		descAll := allDesc(row, cols.Desc)
		payTypeText := cell(row, cols.PayType)
		if payTypeText != "" {
			payTypeText += " | " + descAll
		} else {
			payTypeText = descAll
		}
		instrument, term := ClassifyInstrument(payTypeText)

		descDate, hasDescDate := ExtractDate(descAll)
		maturity, matOK := ParseDate(cell(row, cols.Maturity))
		if !matOK && hasDescDate {
			maturity, matOK = descDate, true
		}

		// A check claim without a date anywhere in the description is
		// treated as Unknown; the customary 90-day term is still kept
		// for term inference.
		if instrument == models.InstrumentCheck && !hasDescDate {
			instrument = models.InstrumentUnknown
		}

		p := models.Payment{
			PaymentDate:  date,
			Amount:       payAmt,
			Instrument:   instrument,
			ExpectedTerm: term,
			Description:  descAll,
		}
		if matOK {
			p.MaturityDate = &maturity
		}
		in.Payments = append(in.Payments, p)
		used = true
	}

	if used {
		if in.FirstTransactionDate == nil || date.Before(*in.FirstTransactionDate) {
			d := date
			in.FirstTransactionDate = &d
		}
	}
	return used
}

// DetectColumns locates the export's columns by exact header match,
// substring fallback, and value scanning for the date and pay-type
// columns when headers give nothing away.
func DetectColumns(grid [][]string) ColumnMap {
	headers := lowerHeaders(grid[0])
	rows := grid[1:]

	cols := ColumnMap{
		Date:     findColumn(headers, dateNames),
		Debit:    findColumn(headers, debitNames),
		Credit:   findColumn(headers, creditNames),
		PayType:  findColumn(headers, payTypeNames),
		Maturity: findByIncludes(headers, maturityNames),
		Desc:     findAllByIncludes(headers, descNames),
	}
	located := 0
	for _, c := range []int{cols.Date, cols.Debit, cols.Credit, cols.PayType} {
		if c >= 0 {
			located++
		}
	}
	if len(cols.Desc) > 0 {
		located++
	}

	if cols.Credit < 0 {
		cols.Credit = findByIncludes(headers, []string{"credit", "alacak", "invoice", "fatura", "دائن"})
	}
	if cols.Debit < 0 {
		cols.Debit = findByIncludes(headers, []string{"debit", "borç", "borc", "payment", "ödeme", "odeme", "tahsilat", "مدين"})
	}
	if cols.Date < 0 {
		cols.Date = findByIncludes(headers, []string{"date", "tarih", "التاريخ"})
	}
	if cols.Date < 0 {
		cols.Date = scanForDates(rows, len(headers))
	}
	if cols.PayType < 0 || payTypeScore(rows, cols.PayType) < minPayTypeHits {
		if auto := scanForPayTypes(rows, len(headers)); auto >= 0 {
			cols.PayType = auto
		}
	}

	cols.InvoiceFromDebit = orientInvoices(headers, rows, cols)
	cols.Confidence = float64(located) / 5

	return cols
}

// orientInvoices decides whether debit or credit cells carry invoices.
// Turkish borç/alacak exports are always debit=invoice; otherwise the
// mapping flips when positive credit cells clearly dominate.
func orientInvoices(headers []string, rows [][]string, cols ColumnMap) bool {
	joined := strings.Join(headers, " ")
	hasBorc := strings.Contains(joined, "borç") || strings.Contains(joined, "borc")
	hasAlacak := strings.Contains(joined, "alacak")
	if hasBorc && hasAlacak {
		return true
	}
	if cols.Credit < 0 || cols.Debit < 0 {
		return true
	}
	var debPos, credPos int
	for _, row := range rows {
		if d, ok := ParseAmount(cell(row, cols.Debit)); ok && d.Sign() > 0 {
			debPos++
		}
		if c, ok := ParseAmount(cell(row, cols.Credit)); ok && c.Sign() > 0 {
			credPos++
		}
	}
	return float64(credPos) <= float64(debPos)*1.1
}

const (
	columnSampleRows = 500
	minPayTypeHits   = 3
)

func scanForDates(rows [][]string, width int) int {
	bestIdx, bestHits, bestRatio := -1, 0, 0.0
	sample := min(len(rows), columnSampleRows)
	for col := 0; col < width; col++ {
		var total, hits int
		for r := 0; r < sample; r++ {
			v := cell(rows[r], col)
			if v == "" {
				continue
			}
			total++
			if _, ok := ParseDate(v); ok {
				hits++
			}
		}
		if total == 0 {
			continue
		}
		ratio := float64(hits) / float64(total)
		if hits > bestHits || (hits == bestHits && ratio > bestRatio) {
			bestIdx, bestHits, bestRatio = col, hits, ratio
		}
	}
	if bestHits >= 3 && bestRatio >= 0.15 {
		return bestIdx
	}
	return -1
}

func scanForPayTypes(rows [][]string, width int) int {
	bestIdx, bestHits, bestRatio := -1, 0, 0.0
	sample := min(len(rows), columnSampleRows)
	for col := 0; col < width; col++ {
		var total, hits, numeric int
		for r := 0; r < sample; r++ {
			v := cell(rows[r], col)
			if v == "" {
				continue
			}
			total++
			if _, ok := ParseAmount(v); ok {
				numeric++
			}
			if instrument, _ := ClassifyInstrument(v); instrument != models.InstrumentUnknown {
				hits++
			}
		}
		if total == 0 || float64(numeric)/float64(total) > 0.7 {
			continue
		}
		ratio := float64(hits) / float64(total)
		if hits > bestHits || (hits == bestHits && ratio > bestRatio) {
			bestIdx, bestHits, bestRatio = col, hits, ratio
		}
	}
	if bestHits >= minPayTypeHits && bestRatio >= 0.10 {
		return bestIdx
	}
	return -1
}

func payTypeScore(rows [][]string, col int) int {
	if col < 0 {
		return 0
	}
	hits := 0
	sample := min(len(rows), 300)
	for r := 0; r < sample; r++ {
		if instrument, _ := ClassifyInstrument(cell(rows[r], col)); instrument != models.InstrumentUnknown {
			hits++
		}
	}
	return hits
}

func lowerHeaders(row []string) []string {
	out := make([]string, len(row))
	for i, h := range row {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func findColumn(headers, names []string) int {
	for _, n := range names {
		for i, h := range headers {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func findByIncludes(headers, names []string) int {
	for i, h := range headers {
		if h == "" {
			continue
		}
		for _, n := range names {
			if n != "" && strings.Contains(h, n) {
				return i
			}
		}
	}
	return -1
}

func findAllByIncludes(headers, names []string) []int {
	var out []int
	for i, h := range headers {
		if h == "" {
			continue
		}
		for _, n := range names {
			if n != "" && strings.Contains(h, n) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func firstDesc(row []string, descCols []int) string {
	for _, c := range descCols {
		if v := cell(row, c); v != "" {
			return v
		}
	}
	return ""
}

func allDesc(row []string, descCols []int) string {
	var parts []string
	for _, c := range descCols {
		if v := cell(row, c); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func emptyColumns() ColumnMap {
	return ColumnMap{Date: -1, Debit: -1, Credit: -1, PayType: -1, Maturity: -1, InvoiceFromDebit: true}
}
