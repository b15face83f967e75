package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nara-digital/newsingest/internal/app"
	"github.com/nara-digital/newsingest/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long:  "Collects every configured source, removes duplicates, enriches the articles and writes them in a single batch. Exits non-zero when the batch could not be written.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			out, err := a.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "persisted %d articles\n", len(out))
			return nil
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline now and then every SCHEDULE_INTERVAL",
	Long:  "Runs until interrupted. With ENABLE_HTTP_MONITORING=true a /health and /metrics server listens on MONITOR_ADDR.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.Schedule(ctx)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		db, dialect, err := app.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		version, dirty, err := store.Migrate(db, dialect)
		if err != nil {
			return err
		}
		log.Info("migrations applied", "driver", dialect, "version", version, "dirty", dirty)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Print one stored document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}

		db, dialect, err := app.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		doc, err := store.NewSQLStore(db, dialect).Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
		return err
	},
}
