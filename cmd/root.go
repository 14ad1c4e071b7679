package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"artool/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "artool",
	Short: "artool - accounts-receivable risk analysis from raw ledger exports",
	Long: `artool reconciles a customer's accounts-receivable ledger and derives a
risk assessment and recommended credit limit.

It reads an invoice/payment export (Google Sheet or local CSV), allocates
payments against invoices first-in-first-out, computes payment-behavior
metrics and writes a credit risk dashboard.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("artool executed")

		fmt.Println("artool - AR risk analysis")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
