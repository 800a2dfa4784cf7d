package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/zatekoja/referralintake/internal/adapters/database"
	"github.com/zatekoja/referralintake/internal/infrastructure/clients/sqlite"
	"github.com/zatekoja/referralintake/pkg/config"
)

func migrateCmd(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), cfg(), true)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), cfg(), false)
		},
	})

	return cmd
}

func runMigrations(ctx context.Context, cfg *config.Config, up bool) error {
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		runner, err := database.NewMigrationRunner(database.DialectPostgres, cfg.Database.DatabaseURL())
		if err != nil {
			return err
		}
		return apply(runner, up)

	case config.StoreBackendSQLite:
		client, err := sqlite.NewClient(ctx, &cfg.SQLite)
		if err != nil {
			return fmt.Errorf("failed to open SQLite store: %w", err)
		}
		defer client.Close()
		return migrateSQLite(client.DB(), up)

	default:
		return fmt.Errorf("store backend %q has no SQL schema to migrate", cfg.Store.Backend)
	}
}

// migrateSQLite runs the migrations over db itself, so ":memory:" stores
// see their schema
func migrateSQLite(db *sql.DB, up bool) error {
	runner, err := database.NewSQLiteMigrationRunner(db)
	if err != nil {
		return err
	}
	return apply(runner, up)
}

func apply(runner *database.MigrationRunner, up bool) error {
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close migration runner")
		}
	}()

	if up {
		return runner.Up()
	}
	return runner.Down()
}
