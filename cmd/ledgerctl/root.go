package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/customsledger/internal/audit"
	"github.com/smallbiznis/customsledger/internal/clock"
	"github.com/smallbiznis/customsledger/internal/config"
	"github.com/smallbiznis/customsledger/internal/cost"
	"github.com/smallbiznis/customsledger/internal/lineitem"
	"github.com/smallbiznis/customsledger/internal/lock"
	"github.com/smallbiznis/customsledger/internal/observability"
	obscontext "github.com/smallbiznis/customsledger/internal/observability/context"
	"github.com/smallbiznis/customsledger/internal/payment"
	"github.com/smallbiznis/customsledger/internal/procedure"
	"github.com/smallbiznis/customsledger/internal/reconciliation"
	"github.com/smallbiznis/customsledger/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const (
	cliActorID     = "ledgerctl"
	startupTimeout = 30 * time.Second
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the customs ledger from the command line",
	Long: `ledgerctl runs maintenance operations against the customs ledger
database: schema migration, financial summaries, line item cost allocation
and the distribution reset.

Database and lock settings are read from the same environment variables
the API server uses.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// withApp starts the ledger services without the HTTP server, populates
// targets and runs fn with a context carrying the CLI system actor.
func withApp(cmd *cobra.Command, fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		audit.Module,
		lock.Module,
		procedure.Module,
		cost.Module,
		payment.Module,
		reconciliation.Module,
		lineitem.Module,
		fx.Populate(targets...),
	)

	startCtx, cancel := context.WithTimeout(cmd.Context(), startupTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), startupTimeout)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	ctx := obscontext.WithActor(cmd.Context(), obscontext.ActorTypeSystem, cliActorID, "system")
	return fn(ctx)
}

func registerSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(2)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
