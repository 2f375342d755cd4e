package main

import (
	"context"

	lineitemdomain "github.com/smallbiznis/customsledger/internal/lineitem/domain"
	"github.com/spf13/cobra"
)

var allocateCmd = &cobra.Command{
	Use:   "allocate <reference>",
	Short: "Allocate import costs over the line items of a procedure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var svc lineitemdomain.Service
		return withApp(cmd, func(ctx context.Context) error {
			result, err := svc.AllocateLineItemCosts(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		}, &svc)
	},
}

func init() {
	rootCmd.AddCommand(allocateCmd)
}
