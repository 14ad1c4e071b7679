package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"artool/internal/analysis"
	"artool/internal/config"
	"artool/internal/logger"
	"artool/internal/normalize"
	"artool/internal/sheets"
	"artool/pkg/models"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Reconcile an AR export and build the credit risk report",
	Long: `Reconcile an accounts-receivable export and build the credit risk report.

The export grid is read from a Google Sheet worksheet (default) or a local
CSV file; headers are detected heuristically across English, Turkish and
Arabic exports. Results are written back as the "AR Analysis", "Credit Risk
Dashboard" and "AR Ledger" sheets, and optionally as a JSON document.

Required environment variables for the Google Sheets path:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Google Sheets URL containing the export worksheet`,
	Example: `  # Analyze the configured Google Sheet worksheet
  artool analyze

  # Analyze a local CSV export as of a specific date
  artool analyze --csv export.csv --cutoff-date 2026-06-30

  # Carry an opening balance and keep the report as JSON
  artool analyze --beginning-balance 5000 --out report.json --dry-run`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("csv", "", "Local CSV export to analyze instead of the Google Sheet")
	analyzeCmd.Flags().String("worksheet", "", "Worksheet holding the export grid (default: GOOGLE_SHEET_WORKSHEET)")
	analyzeCmd.Flags().String("cutoff-date", "", "Evaluation date for the analysis (format: YYYY-MM-DD, default: today)")
	analyzeCmd.Flags().String("beginning-balance", "0", "Receivable balance carried into the period")
	analyzeCmd.Flags().String("out", "", "Write the full report as JSON to this path")
	analyzeCmd.Flags().Bool("dry-run", false, "Analyze but don't write output sheets")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("analyze")

	csvPath, _ := cmd.Flags().GetString("csv")
	worksheet, _ := cmd.Flags().GetString("worksheet")
	cutoffDateStr, _ := cmd.Flags().GetString("cutoff-date")
	beginningStr, _ := cmd.Flags().GetString("beginning-balance")
	outPath, _ := cmd.Flags().GetString("out")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var asOf time.Time
	if cutoffDateStr == "" {
		asOf = time.Now()
	} else {
		parsedDate, err := time.Parse("2006-01-02", cutoffDateStr)
		if err != nil {
			return fmt.Errorf("invalid cutoff date format. Use YYYY-MM-DD: %w", err)
		}
		asOf = parsedDate
	}

	beginningBalance, err := decimal.NewFromString(beginningStr)
	if err != nil {
		return fmt.Errorf("invalid beginning balance %q: %w", beginningStr, err)
	}
	if beginningBalance.Sign() < 0 {
		return fmt.Errorf("beginning balance must not be negative")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if worksheet == "" {
		worksheet = cfg.GoogleSheetWorksheet
	}

	log.Info().
		Str("cutoff_date", asOf.Format("2006-01-02")).
		Str("beginning_balance", beginningBalance.String()).
		Bool("dry_run", dryRun).
		Msg("Starting AR risk analysis")

	ctx := context.Background()

	var grid [][]string
	var sheetsService *sheets.Service
	if csvPath != "" {
		grid, err = readCSVGrid(csvPath)
		if err != nil {
			return fmt.Errorf("failed to read CSV export: %w", err)
		}
	} else {
		sheetURL := cfg.GoogleSheetURL
		if sheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required (or use --csv)")
		}
		sheetsService, err = sheets.NewSheetsService(ctx, sheetURL)
		if err != nil {
			return fmt.Errorf("failed to initialize Google Sheets service: %w", err)
		}
		grid, err = sheetsService.ReadGrid(ctx, worksheet)
		if err != nil {
			return fmt.Errorf("failed to read export grid: %w", err)
		}
	}

	input, stats := normalize.Normalize(grid)
	log.Info().
		Int("invoices", len(input.Invoices)).
		Int("payments", len(input.Payments)).
		Int("skipped_rows", stats.SkippedRows).
		Float64("column_confidence", stats.Columns.Confidence).
		Msg("Export normalized")

	report, err := analysis.Run(input, analysis.Options{
		AsOf:             asOf,
		BeginningBalance: beginningBalance,
		Policy:           &cfg.Policy,
		SkippedRows:      stats.SkippedRows,
		ColumnConfidence: stats.Columns.Confidence,
	})
	if err != nil {
		if errors.Is(err, analysis.ErrNoDatedRows) {
			return fmt.Errorf("export has no parseable invoice or payment dates: %w", err)
		}
		return fmt.Errorf("analysis failed: %w", err)
	}

	// Document identity belongs to the exported artifact, not the
	// deterministic engine output.
	report.ID = uuid.NewString()
	report.GeneratedAt = time.Now()

	printSummary(report)

	if outPath != "" {
		if err := writeJSONReport(outPath, report); err != nil {
			return fmt.Errorf("failed to write JSON report: %w", err)
		}
		log.Info().Str("path", outPath).Msg("JSON report written")
	}

	if dryRun || sheetsService == nil {
		log.Info().Msg("Skipping output sheets")
		return nil
	}

	if err := sheetsService.ExportReport(ctx, report); err != nil {
		return fmt.Errorf("failed to write output sheets: %w", err)
	}

	log.Info().Msg("AR risk analysis completed successfully")
	return nil
}

func readCSVGrid(path string) ([][]string, error) {
	const op = "readCSVGrid"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	grid, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse %s: %w", op, path, err)
	}
	return grid, nil
}

func writeJSONReport(path string, report *models.RiskReport) error {
	const op = "writeJSONReport"

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func printSummary(report *models.RiskReport) {
	fmt.Printf("Risk band: %s (score %.2f)\n", report.Band, report.Score)
	if report.CreditLimit != nil {
		fmt.Printf("Recommended credit limit: %s\n", report.CreditLimit.StringFixed(0))
	}
	if report.AvailableCredit != nil {
		fmt.Printf("Available credit: %s\n", report.AvailableCredit.StringFixed(0))
	}
	fmt.Printf("Open balance: %s\n", report.OpenBalance.StringFixed(2))
	if report.Reconciliation.Delta.Sign() != 0 {
		fmt.Printf("WARNING: reconciliation delta %s\n", report.Reconciliation.Delta.String())
	}
}
