package convex

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// PatientAdapter implements PatientRepository over Convex
type PatientAdapter struct {
	client caller
}

// FindByEmail returns the first patient with the email
func (a *PatientAdapter) FindByEmail(ctx context.Context, email string) (*entities.Patient, error) {
	return a.find(ctx, fnFindPatientByEmail, args{"email": email})
}

// FindByPhone returns the first patient with the phone number
func (a *PatientAdapter) FindByPhone(ctx context.Context, phone string) (*entities.Patient, error) {
	return a.find(ctx, fnFindPatientByPhone, args{"phone": phone})
}

func (a *PatientAdapter) find(ctx context.Context, fn string, query args) (*entities.Patient, error) {
	var doc *patientDoc
	if err := a.client.Query(ctx, fn, query, &doc); err != nil {
		return nil, storeError(fn, err, "")
	}
	if doc == nil {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	return doc.entity(), nil
}

// Create inserts a patient and assigns the ID Convex returns
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	var id string
	if err := a.client.Mutation(ctx, fnCreatePatient, patientArgs(patient), &id); err != nil {
		return storeError(fnCreatePatient, err, "")
	}
	patient.ID = id
	return nil
}
