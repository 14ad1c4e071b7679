package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"artool/internal/logger"
	"artool/pkg/models"
)

// Sheet names written by ExportReport.
const (
	AnalysisSheet  = "AR Analysis"
	DashboardSheet = "Credit Risk Dashboard"
	LedgerSheet    = "AR Ledger"
)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// NewSheetsService creates a new Google Sheets service
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	// Extract spreadsheet ID from URL
	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	// Get Google credentials
	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	// Create Google Sheets service
	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	re := regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	matches := re.FindStringSubmatch(url)

	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}

	return matches[1], nil
}

// ReadRange reads values from a specified range in the spreadsheet
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Successfully read range from spreadsheet")

	return resp.Values, nil
}

// ReadGrid reads a whole worksheet as a string grid for the normalizer,
// header row first.
func (s *Service) ReadGrid(ctx context.Context, sheetName string) ([][]string, error) {
	const op = "ReadGrid"

	values, err := s.ReadRange(ctx, sheetName)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet '%s': %w", op, sheetName, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: sheet '%s' is empty", op, sheetName)
	}

	grid := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprintf("%v", v)
			}
		}
		grid[i] = cells
	}

	s.log.Info().
		Int("rows", len(grid)).
		Str("sheet", sheetName).
		Msg("Grid read successfully")

	return grid, nil
}

const dateFormat = "02.01.2006"

// ExportReport writes the analysis, dashboard and ledger sheets for a
// completed risk report, replacing any earlier run.
func (s *Service) ExportReport(ctx context.Context, report *models.RiskReport) error {
	const op = "ExportReport"

	s.log.Info().
		Str("report_id", report.ID).
		Int("invoices", len(report.Invoices)).
		Int("ledger_entries", len(report.Ledger)).
		Msg("Exporting report to Google Sheets")

	if err := s.writeSheet(ctx, AnalysisSheet, analysisRows(report)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.writeSheet(ctx, DashboardSheet, dashboardRows(report)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.writeSheet(ctx, LedgerSheet, ledgerRows(report)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().Str("report_id", report.ID).Msg("Report exported successfully")
	return nil
}

func analysisRows(report *models.RiskReport) [][]interface{} {
	rows := [][]interface{}{{
		"Invoice Date", "Invoice No", "Type", "Amount", "Closing Date",
		"Term (Days)", "Due Date", "Days to Pay", "Days After Due", "Remaining", "Running Balance",
	}}
	for _, inv := range report.Invoices {
		amount, _ := inv.Amount.Float64()
		remaining, _ := inv.Remaining.Float64()
		var closing, due, daysToPay, daysAfterDue interface{} = "", "", "", ""
		if inv.Paid && inv.ClosingDate != nil {
			closing = inv.ClosingDate.Format(dateFormat)
			due = inv.DueDate().Format(dateFormat)
			if d := int(inv.ClosingDate.Sub(inv.InvoiceDate).Hours()/24 + 0.5); d >= 0 {
				daysToPay = d
				daysAfterDue = d - inv.Term
			}
		}
		var running interface{} = ""
		if inv.RunningBalance != nil {
			running, _ = inv.RunningBalance.Float64()
		}
		rows = append(rows, []interface{}{
			inv.InvoiceDate.Format(dateFormat), inv.InvoiceNum, string(inv.Kind),
			amount, closing, inv.Term, due, daysToPay, daysAfterDue, remaining, running,
		})
	}
	return rows
}

func dashboardRows(report *models.RiskReport) [][]interface{} {
	rows := [][]interface{}{{"Metric", "Value", "Assessment"}}
	for _, m := range report.Metrics {
		var value interface{} = ""
		if m.Defined {
			if m.Percent {
				value = fmt.Sprintf("%.1f%%", m.Value*100)
			} else {
				value = m.Value
			}
		}
		rows = append(rows, []interface{}{m.Label, value, string(m.Assessment)})
	}

	rows = append(rows, []interface{}{"", "", ""})
	rows = append(rows, []interface{}{"Aging Bucket", "Unpaid Balance", ""})
	for i, label := range []string{"0-30", "31-60", "61-90", "91+"} {
		amount, _ := report.Aging[i].Float64()
		rows = append(rows, []interface{}{label, amount, ""})
	}

	if len(report.MonthlyTrend) > 0 {
		rows = append(rows, []interface{}{"", "", ""})
		rows = append(rows, []interface{}{"Month", "Avg Days to Pay", ""})
		for _, p := range report.MonthlyTrend {
			rows = append(rows, []interface{}{p.Month.Format("2006-01"), p.AvgDaysToPay, ""})
		}
	}

	rec := report.Reconciliation
	expected, _ := rec.ExpectedOutstanding.Float64()
	computed, _ := rec.ComputedOutstanding.Float64()
	delta, _ := rec.Delta.Float64()
	rows = append(rows, []interface{}{"", "", ""})
	rows = append(rows, []interface{}{"Expected Outstanding", expected, ""})
	rows = append(rows, []interface{}{"Computed Outstanding", computed, ""})
	rows = append(rows, []interface{}{"Reconciliation Delta", delta, ""})

	return rows
}

func ledgerRows(report *models.RiskReport) [][]interface{} {
	rows := [][]interface{}{{"Date", "Type", "Description", "Ref", "Debit", "Credit", "Balance"}}
	for _, e := range report.Ledger {
		debit, _ := e.Debit.Float64()
		credit, _ := e.Credit.Float64()
		balance, _ := e.Balance.Float64()
		rows = append(rows, []interface{}{
			e.Date.Format(dateFormat), string(e.Kind), e.Description, e.Ref,
			debit, credit, balance,
		})
	}
	return rows
}

// writeSheet clears and rewrites one output sheet, creating it when
// missing and bolding the header row.
func (s *Service) writeSheet(ctx context.Context, sheetName string, rows [][]interface{}) error {
	const op = "writeSheet"

	sheetID, err := s.ensureSheet(ctx, sheetName)
	if err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	_, err = s.sheetsService.Spreadsheets.Values.Clear(s.spreadsheetID, sheetName, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to clear sheet '%s': %w", op, sheetName, err)
	}

	valueRange := &sheets.ValueRange{Values: rows}
	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		sheetName+"!A1",
		valueRange,
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to write sheet '%s': %w", op, sheetName, err)
	}

	if err := s.formatHeaders(ctx, sheetID, len(rows[0])); err != nil {
		s.log.Warn().Err(err).Str("sheet", sheetName).Msg("Failed to format headers, continuing anyway")
	}

	s.log.Info().
		Int("rows_written", len(rows)).
		Str("sheet", sheetName).
		Msg("Sheet written successfully")

	return nil
}

// ensureSheet returns the sheet's id, creating the sheet when missing.
func (s *Service) ensureSheet(ctx context.Context, sheetName string) (int64, error) {
	const op = "ensureSheet"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, nil
		}
	}

	s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheetName},
			}},
		},
	}

	resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to create sheet: %w", op, err)
	}

	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// formatHeaders makes the header row bold and applies basic formatting
func (s *Service) formatHeaders(ctx context.Context, sheetID int64, columns int) error {
	const op = "formatHeaders"

	requests := []*sheets.Request{
		// Make header row bold
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold: true,
						},
						BackgroundColor: &sheets.Color{
							Red:   0.9,
							Green: 0.9,
							Blue:  0.9,
						},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		// Auto-resize columns
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(columns),
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	_, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}

	return nil
}
