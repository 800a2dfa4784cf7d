package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// TaxonomyAdapter implements TaxonomyRepository. Names are unique within
// their parent, so creates are upserts on (parent, name).
type TaxonomyAdapter struct {
	db *sql.DB
	qb *goqu.Database
}

// NewTaxonomyAdapter creates a new taxonomy adapter
func NewTaxonomyAdapter(db *sql.DB, dialect string) repositories.TaxonomyRepository {
	return &TaxonomyAdapter{
		db: db,
		qb: goqu.New(dialect, db),
	}
}

// ListSpecialties retrieves every specialty
func (a *TaxonomyAdapter) ListSpecialties(ctx context.Context) ([]*entities.Specialty, error) {
	query, args, err := a.qb.From("specialties").
		Select("id", "name", "description", "created_at", "updated_at").
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to list specialties", err)
	}
	defer rows.Close()

	specialties := []*entities.Specialty{}
	for rows.Next() {
		s := &entities.Specialty{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, apperrors.NewStoreError("failed to scan specialty", err)
		}
		specialties = append(specialties, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("failed to list specialties", err)
	}
	return specialties, nil
}

// ListTreatmentTypes retrieves every treatment type
func (a *TaxonomyAdapter) ListTreatmentTypes(ctx context.Context) ([]*entities.TreatmentType, error) {
	query, args, err := a.qb.From("treatment_types").
		Select("id", "specialty_id", "name", "description", "created_at", "updated_at").
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to list treatment types", err)
	}
	defer rows.Close()

	treatmentTypes := []*entities.TreatmentType{}
	for rows.Next() {
		tt := &entities.TreatmentType{}
		if err := rows.Scan(&tt.ID, &tt.SpecialtyID, &tt.Name, &tt.Description, &tt.CreatedAt, &tt.UpdatedAt); err != nil {
			return nil, apperrors.NewStoreError("failed to scan treatment type", err)
		}
		treatmentTypes = append(treatmentTypes, tt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("failed to list treatment types", err)
	}
	return treatmentTypes, nil
}

// ListProcedures retrieves every procedure
func (a *TaxonomyAdapter) ListProcedures(ctx context.Context) ([]*entities.Procedure, error) {
	query, args, err := a.qb.From("procedures").
		Select("id", "treatment_type_id", "name", "description", "created_at", "updated_at").
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to list procedures", err)
	}
	defer rows.Close()

	procedures := []*entities.Procedure{}
	for rows.Next() {
		p := &entities.Procedure{}
		if err := rows.Scan(&p.ID, &p.TreatmentTypeID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, apperrors.NewStoreError("failed to scan procedure", err)
		}
		procedures = append(procedures, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("failed to list procedures", err)
	}
	return procedures, nil
}

// CreateSpecialty creates a specialty or returns the one with the same name
func (a *TaxonomyAdapter) CreateSpecialty(ctx context.Context, name, description string) (string, bool, error) {
	return a.upsert(ctx, "specialties", goqu.Ex{"name": name}, goqu.Record{"description": description})
}

// CreateTreatmentType creates a treatment type or returns the one with the
// same name under the specialty
func (a *TaxonomyAdapter) CreateTreatmentType(ctx context.Context, specialtyID, name, description string) (string, bool, error) {
	return a.upsert(ctx, "treatment_types",
		goqu.Ex{"specialty_id": specialtyID, "name": name},
		goqu.Record{"description": description},
	)
}

// CreateProcedure creates a procedure or returns the one with the same name
// under the treatment type
func (a *TaxonomyAdapter) CreateProcedure(ctx context.Context, treatmentTypeID, name, description string) (string, bool, error) {
	return a.upsert(ctx, "procedures",
		goqu.Ex{"treatment_type_id": treatmentTypeID, "name": name},
		goqu.Record{"description": description},
	)
}

func (a *TaxonomyAdapter) upsert(ctx context.Context, table string, key goqu.Ex, fields goqu.Record) (string, bool, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	record := goqu.Record{"id": id, "created_at": now, "updated_at": now}
	for col, val := range key {
		record[col] = val
	}
	for col, val := range fields {
		record[col] = val
	}

	created, err := insertIgnore(ctx, a.db, a.qb.Insert(table).Rows(record))
	if err != nil {
		return "", false, apperrors.NewStoreError(fmt.Sprintf("failed to insert into %s", table), err)
	}
	if created {
		return id, true, nil
	}

	query, args, err := a.qb.From(table).Select("id").Where(key).Prepared(true).ToSQL()
	if err != nil {
		return "", false, buildError(err)
	}
	var existing string
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&existing); err != nil {
		return "", false, apperrors.NewStoreError(fmt.Sprintf("failed to look up existing %s row", table), err)
	}
	return existing, false, nil
}
