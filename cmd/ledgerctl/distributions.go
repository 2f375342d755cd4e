package main

import (
	"context"
	"errors"

	paymentdomain "github.com/smallbiznis/customsledger/internal/payment/domain"
	"github.com/spf13/cobra"
)

var distributionsCmd = &cobra.Command{
	Use:   "distributions",
	Short: "Manage payment distributions",
}

var distributionsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every payment distribution and reset all incoming payments",
	Long: `reset removes every payment distribution and returns every incoming
payment to pending_distribution with its full amount remaining. The change
runs in one transaction and is recorded in the audit log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return errors.New("refusing to reset distributions without --yes")
		}

		var svc paymentdomain.Service
		return withApp(cmd, func(ctx context.Context) error {
			result, err := svc.DeleteAllDistributions(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		}, &svc)
	},
}

func init() {
	rootCmd.AddCommand(distributionsCmd)
	distributionsCmd.AddCommand(distributionsResetCmd)
	distributionsResetCmd.Flags().Bool("yes", false, "Confirm the reset")
}
