package main

import (
	"context"

	"github.com/smallbiznis/customsledger/internal/money"
	proceduredomain "github.com/smallbiznis/customsledger/internal/procedure/domain"
	"github.com/spf13/cobra"
)

var rateCmd = &cobra.Command{
	Use:     "rate <reference> <usd-to-local>",
	Short:   "Set the USD to local currency rate of a procedure",
	Example: `  ledgerctl rate IMP-2024-0113 32.415`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := money.Parse(args[1])
		if err != nil {
			return err
		}

		var svc proceduredomain.Service
		return withApp(cmd, func(ctx context.Context) error {
			procedure, err := svc.SetExchangeRate(ctx, args[0], rate)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), procedure)
		}, &svc)
	},
}

func init() {
	rootCmd.AddCommand(rateCmd)
}
