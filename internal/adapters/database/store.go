package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// SQL dialects supported by the store
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// NewStore builds every repository over one SQL connection pool
func NewStore(db *sql.DB, dialect string) (*repositories.Store, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	return &repositories.Store{
		Taxonomy: NewTaxonomyAdapter(db, dialect),
		Rules:    NewRuleAdapter(db, dialect),
		Cases:    NewCaseAdapter(db, dialect),
		Patients: NewPatientAdapter(db, dialect),
	}, nil
}

func buildError(err error) error {
	return apperrors.NewInternalError("failed to build query", err)
}

// insertIgnore runs an INSERT that does nothing on a unique conflict and
// reports whether a row was written
func insertIgnore(ctx context.Context, db execer, ds *goqu.InsertDataset) (bool, error) {
	query, args, err := ds.OnConflict(goqu.DoNothing()).Prepared(true).ToSQL()
	if err != nil {
		return false, buildError(err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
