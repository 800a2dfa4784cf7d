package repositories

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
)

// PatientRepository defines the interface for patient data operations.
// Find methods return a NOT_FOUND error when no patient matches.
type PatientRepository interface {
	FindByEmail(ctx context.Context, email string) (*entities.Patient, error)
	FindByPhone(ctx context.Context, phone string) (*entities.Patient, error)
	Create(ctx context.Context, patient *entities.Patient) error
}
