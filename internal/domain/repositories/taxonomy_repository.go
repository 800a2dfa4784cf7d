package repositories

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
)

// TaxonomyRepository defines the interface for taxonomy data operations.
//
// Create methods are idempotent on name within the parent: when an entry with
// the same name already exists under the same parent its ID is returned with
// created=false.
type TaxonomyRepository interface {
	// ListSpecialties retrieves every specialty
	ListSpecialties(ctx context.Context) ([]*entities.Specialty, error)

	// ListTreatmentTypes retrieves every treatment type
	ListTreatmentTypes(ctx context.Context) ([]*entities.TreatmentType, error)

	// ListProcedures retrieves every procedure
	ListProcedures(ctx context.Context) ([]*entities.Procedure, error)

	// CreateSpecialty creates a specialty
	CreateSpecialty(ctx context.Context, name, description string) (id string, created bool, err error)

	// CreateTreatmentType creates a treatment type under a specialty
	CreateTreatmentType(ctx context.Context, specialtyID, name, description string) (id string, created bool, err error)

	// CreateProcedure creates a procedure under a treatment type
	CreateProcedure(ctx context.Context, treatmentTypeID, name, description string) (id string, created bool, err error)
}
