package main

import (
	"context"

	"github.com/smallbiznis/customsledger/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the ledger schema to the configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			conn *gorm.DB
			log  *zap.Logger
		)
		return withApp(cmd, func(ctx context.Context) error {
			if err := migration.Migrate(conn.WithContext(ctx)); err != nil {
				return err
			}
			log.Info("schema up to date", zap.String("dialect", conn.Dialector.Name()))
			cmd.Println("migrations applied")
			return nil
		}, &conn, &log)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
