package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
)

//go:embed migrations
var migrationFiles embed.FS

// MigrationRunner applies the embedded schema migrations
type MigrationRunner struct {
	migrate *migrate.Migrate

	// set when the runner borrows the caller's connection; only the
	// source is closed then
	source interface{ Close() error }
}

// NewMigrationRunner creates a runner for the dialect. databaseURL is a
// postgres:// URL or a sqlite://<path> URL.
func NewMigrationRunner(dialect, databaseURL string) (*MigrationRunner, error) {
	dir := "migrations/postgres"
	if dialect == DialectSQLite {
		dir = "migrations/sqlite"
	}

	source, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}
	return &MigrationRunner{migrate: m}, nil
}

// NewSQLiteMigrationRunner migrates an already open SQLite connection. This
// is the only way to migrate a ":memory:" database, which is private to its
// connection. Close leaves db open.
func NewSQLiteMigrationRunner(db *sql.DB) (*MigrationRunner, error) {
	source, err := iofs.New(migrationFiles, "migrations/sqlite")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("creating sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}
	return &MigrationRunner{migrate: m, source: source}, nil
}

// SQLiteURL returns the migration URL for a SQLite database file
func SQLiteURL(path string) string {
	return "sqlite://" + strings.TrimPrefix(path, "file:")
}

// Up runs all pending migrations
func (mr *MigrationRunner) Up() error {
	logger := observability.GetLogger()
	logger.Info().Msg("Running database migrations up")

	if err := mr.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Msg("No pending migrations to run")
			return nil
		}
		return fmt.Errorf("running migrations up: %w", err)
	}

	mr.logVersion("Migrations completed successfully")
	return nil
}

// Down rolls back one migration
func (mr *MigrationRunner) Down() error {
	logger := observability.GetLogger()
	logger.Info().Msg("Rolling back one migration")

	if err := mr.migrate.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Msg("No migrations to roll back")
			return nil
		}
		return fmt.Errorf("rolling back migration: %w", err)
	}

	mr.logVersion("Migration rolled back successfully")
	return nil
}

func (mr *MigrationRunner) logVersion(msg string) {
	logger := observability.GetLogger()
	version, dirty, err := mr.migrate.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("Could not get migration version")
		return
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg(msg)
}

// Close closes the migration runner
func (mr *MigrationRunner) Close() error {
	if mr.source != nil {
		// closing the migrate instance would close the borrowed connection
		if err := mr.source.Close(); err != nil {
			return fmt.Errorf("closing migration source: %w", err)
		}
		return nil
	}

	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
