package main

import (
	"context"
	"errors"

	reconciliationdomain "github.com/smallbiznis/customsledger/internal/reconciliation/domain"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [reference]",
	Short: "Print the financial summary of one procedure or, with --all, every procedure",
	Example: `  ledgerctl summary IMP-2024-0113
  ledgerctl summary --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().Bool("all", false, "Summarize every procedure from one consistent read")
}

func runSummary(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if all == (len(args) == 1) {
		return errors.New("pass either a procedure reference or --all")
	}

	var svc reconciliationdomain.Service
	return withApp(cmd, func(ctx context.Context) error {
		if all {
			summaries, err := svc.BatchFinancialSummaries(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summaries)
		}

		summary, err := svc.CalculateFinancialSummary(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), summary)
	}, &svc)
}
