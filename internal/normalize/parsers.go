package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"artool/pkg/models"
)

// NormalizeDigits folds Arabic-Indic and Eastern Arabic-Indic digits to
// ASCII so number and date parsing works on Arabic exports.
func NormalizeDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0x0660 && r <= 0x0669:
			b.WriteRune('0' + (r - 0x0660))
		case r >= 0x06F0 && r <= 0x06F9:
			b.WriteRune('0' + (r - 0x06F0))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

var amountStrip = regexp.MustCompile(`[^\d,.\-]`)

// ParseAmount reads a locale-ambiguous amount cell. Both "1.234,56" and
// "1,234.56" styles resolve by treating the right-most separator with a
// 1-2 digit tail as the decimal point. Unparseable cells report ok=false,
// never an error.
func ParseAmount(v string) (decimal.Decimal, bool) {
	s := amountStrip.ReplaceAllString(strings.TrimSpace(NormalizeDigits(v)), "")
	if s == "" {
		return decimal.Zero, false
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) >= 1 && len(parts[1]) <= 2 {
			s = parts[0] + "." + parts[1]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasDot:
		parts := strings.Split(s, ".")
		if !(len(parts) == 2 && len(parts[1]) >= 1 && len(parts[1]) <= 2) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// sheetEpoch is the spreadsheet serial-number origin (1899-12-30).
var sheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseDate reads a day-first date cell: D/M/Y with slash, dot or dash
// separators, two- or four-digit years, or a bare spreadsheet serial
// number. Only the first whitespace-separated token is considered.
func ParseDate(v string) (time.Time, bool) {
	s := strings.TrimSpace(NormalizeDigits(v))
	if s == "" {
		return time.Time{}, false
	}

	// Spreadsheet serial dates arrive as plain numbers.
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial <= 0 || serial > 300000 {
			return time.Time{}, false
		}
		whole := math.Floor(serial)
		t := sheetEpoch.AddDate(0, 0, int(whole))
		frac := serial - whole
		return t.Add(time.Duration(math.Round(frac * 24 * float64(time.Hour.Nanoseconds())))), true
	}

	if idx := strings.IndexByte(s, ' '); idx > 0 {
		s = s[:idx]
	}
	norm := strings.NewReplacer(".", "/", "-", "/").Replace(s)
	parts := strings.Split(norm, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return time.Time{}, false
	}
	year, ok := parseYear(parts[2])
	if !ok {
		return time.Time{}, false
	}
	return makeDate(year, month, day)
}

func parseYear(s string) (int, bool) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	if len(strings.TrimSpace(s)) == 2 {
		if y >= 30 {
			return 1900 + y, true
		}
		return 2000 + y, true
	}
	return y, true
}

// makeDate builds a date and rejects overflow (e.g. 31/02 rolling into
// March).
func makeDate(year, month, day int) (time.Time, bool) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Maturity labels in EN/TR/AR; a date within 20 characters of one of these
// is preferred over any other date in the text.
var labelledDate = regexp.MustCompile(`(?i)(?:vade tarihi|vadesi|vade|son ödeme|son odeme|maturity date|maturity|due date|due|استحقاق|تاريخ الاستحقاق|الاستحقاق|تستحق)[^0-9]{0,20}(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})`)

var (
	dmyInText = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})\b`)
	ymdInText = regexp.MustCompile(`\b(\d{4})[/\-](\d{1,2})[/\-](\d{1,2})\b`)
	monInText = regexp.MustCompile(`\b(\d{1,2})\s+([a-zçğıöşü]+)\s+(\d{2,4})\b`)
)

var monthNames = map[string]time.Month{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	"ocak": 1, "şubat": 2, "subat": 2, "mart": 3, "nisan": 4,
	"mayıs": 5, "mayis": 5, "haziran": 6, "temmuz": 7,
	"ağustos": 8, "agustos": 8, "eylül": 9, "eylul": 9,
	"ekim": 10, "kasım": 11, "kasim": 11, "aralık": 12, "aralik": 12,
}

// ExtractDate pulls a date out of free text, e.g. a check maturity
// mentioned in a payment description. Labelled maturity dates win;
// otherwise the last date-like token in the text is used.
func ExtractDate(text string) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	s := NormalizeDigits(text)

	if m := labelledDate.FindStringSubmatch(s); m != nil {
		if t, ok := ParseDate(m[1]); ok {
			return t, true
		}
	}

	if ms := dmyInText.FindAllStringSubmatch(s, -1); len(ms) > 0 {
		last := ms[len(ms)-1]
		if t, ok := ParseDate(last[1] + "/" + last[2] + "/" + last[3]); ok {
			return t, true
		}
	}

	if ms := ymdInText.FindAllStringSubmatch(s, -1); len(ms) > 0 {
		last := ms[len(ms)-1]
		year, _ := strconv.Atoi(last[1])
		month, _ := strconv.Atoi(last[2])
		day, _ := strconv.Atoi(last[3])
		if t, ok := makeDate(year, month, day); ok {
			return t, true
		}
	}

	if ms := monInText.FindAllStringSubmatch(strings.ToLower(s), -1); len(ms) > 0 {
		last := ms[len(ms)-1]
		if month, ok := monthNames[last[2]]; ok {
			day, _ := strconv.Atoi(last[1])
			year, yok := parseYear(last[3])
			if yok {
				if t, ok := makeDate(year, int(month), day); ok {
					return t, true
				}
			}
		}
	}

	return time.Time{}, false
}

var (
	checkPattern = regexp.MustCompile(`(?i)(cek|çek|cheque|check|senet|vadeli|بولصة|شيك)`)
	cardPattern  = regexp.MustCompile(`(?i)(\bkk\b|k\.k\.|kredi\s*kart|credit\s*card|card|kart|visa|master|بطاقة|فيزا|كردت)`)
	cashPattern  = regexp.MustCompile(`(?i)(peşin|pesin|cash|nakit|نقد|نقدي|كاش)`)
)

// ClassifyInstrument maps free pay-type text to an instrument and its
// customary expected term in days. Unrecognized text is Unknown with no
// term, a first-class value rather than an empty string.
func ClassifyInstrument(text string) (models.InstrumentType, *int) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return models.InstrumentUnknown, nil
	}
	switch {
	case checkPattern.MatchString(t):
		return models.InstrumentCheck, intPtr(90)
	case cardPattern.MatchString(t):
		return models.InstrumentCard, intPtr(30)
	case cashPattern.MatchString(t):
		return models.InstrumentCash, intPtr(30)
	}
	return models.InstrumentUnknown, nil
}

func intPtr(v int) *int { return &v }
