package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// PatientAdapter implements PatientRepository
type PatientAdapter struct {
	db *sql.DB
	qb *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(db *sql.DB, dialect string) repositories.PatientRepository {
	return &PatientAdapter{
		db: db,
		qb: goqu.New(dialect, db),
	}
}

// FindByEmail returns the oldest patient with the email
func (a *PatientAdapter) FindByEmail(ctx context.Context, email string) (*entities.Patient, error) {
	return a.findBy(ctx, "email", email)
}

// FindByPhone returns the oldest patient with the phone number
func (a *PatientAdapter) FindByPhone(ctx context.Context, phone string) (*entities.Patient, error) {
	return a.findBy(ctx, "phone", phone)
}

func (a *PatientAdapter) findBy(ctx context.Context, field, value string) (*entities.Patient, error) {
	query, args, err := a.qb.From("patients").
		Select("id", "name", "email", "phone", "additional_data", "created_at", "updated_at").
		Where(goqu.Ex{field: value}).
		Order(goqu.C("created_at").Asc()).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	patient := &entities.Patient{}
	var email, phone sql.NullString
	var additional []byte
	err = a.db.QueryRowContext(ctx, query, args...).Scan(
		&patient.ID,
		&patient.Name,
		&email,
		&phone,
		&additional,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	if err != nil {
		return nil, apperrors.NewStoreError("failed to find patient by "+field, err)
	}

	patient.Email = email.String
	patient.Phone = phone.String
	if len(additional) > 0 {
		if err := json.Unmarshal(additional, &patient.AdditionalData); err != nil {
			return nil, apperrors.NewStoreError("failed to decode patient additional data", err)
		}
	}
	return patient, nil
}

// Create inserts a patient, assigning its ID and timestamps
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	items := patient.AdditionalData
	if items == nil {
		items = []entities.PatientDataItem{}
	}
	additional, err := json.Marshal(items)
	if err != nil {
		return apperrors.NewInternalError("failed to encode patient additional data", err)
	}

	query, args, err := a.qb.Insert("patients").Rows(goqu.Record{
		"id":              patient.ID,
		"name":            patient.Name,
		"email":           nullString(patient.Email),
		"phone":           nullString(patient.Phone),
		"additional_data": string(additional),
		"created_at":      now,
		"updated_at":      now,
	}).Prepared(true).ToSQL()
	if err != nil {
		return buildError(err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStoreError("failed to create patient", err)
	}
	return nil
}
