// Package sqlite opens the embedded store used for local development and
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"github.com/zatekoja/referralintake/pkg/config"
	_ "modernc.org/sqlite"
)

// Client wraps a SQLite database
type Client struct {
	db   *sql.DB
	path string
}

// NewClient opens (creating if needed) the database at cfg.Path. The path
// ":memory:" opens a private in-memory database.
func NewClient(ctx context.Context, cfg *config.SQLiteConfig) (*Client, error) {
	path := cfg.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single writer avoids SQLITE_BUSY under concurrent rule fan-out
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	observability.GetLogger().Info().Str("path", path).Msg("Opened SQLite store")
	return &Client{db: db, path: path}, nil
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Path returns the database file path
func (c *Client) Path() string {
	return c.path
}

// Close closes the database
func (c *Client) Close() error {
	return c.db.Close()
}
