package locking

import (
	"context"
	"fmt"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/providers"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// TaxonomyRepository makes creates idempotent on name within the parent for
// stores that cannot enforce it. Each create holds a lease on the name,
// re-lists the level and only inserts when no entry exists.
type TaxonomyRepository struct {
	repositories.TaxonomyRepository
	locker providers.NameLocker
}

// NewTaxonomyRepository wraps inner with name leases
func NewTaxonomyRepository(inner repositories.TaxonomyRepository, locker providers.NameLocker) repositories.TaxonomyRepository {
	return &TaxonomyRepository{TaxonomyRepository: inner, locker: locker}
}

// LeaseKey returns the lease key of a taxonomy name under a parent
func LeaseKey(level entities.TaxonomyLevel, parentID, name string) string {
	return fmt.Sprintf("taxonomy:%s:%s:%s", level, parentID, name)
}

// CreateSpecialty creates a specialty unless one with the name exists
func (r *TaxonomyRepository) CreateSpecialty(ctx context.Context, name, description string) (string, bool, error) {
	return r.createOnce(ctx, entities.TaxonomyLevelSpecialty, "", name,
		func() (string, error) {
			items, err := r.ListSpecialties(ctx)
			if err != nil {
				return "", err
			}
			for _, s := range items {
				if s.Name == name {
					return s.ID, nil
				}
			}
			return "", nil
		},
		func() (string, bool, error) {
			return r.TaxonomyRepository.CreateSpecialty(ctx, name, description)
		},
	)
}

// CreateTreatmentType creates a treatment type unless the specialty already
// has one with the name
func (r *TaxonomyRepository) CreateTreatmentType(ctx context.Context, specialtyID, name, description string) (string, bool, error) {
	return r.createOnce(ctx, entities.TaxonomyLevelTreatmentType, specialtyID, name,
		func() (string, error) {
			items, err := r.ListTreatmentTypes(ctx)
			if err != nil {
				return "", err
			}
			for _, tt := range items {
				if tt.SpecialtyID == specialtyID && tt.Name == name {
					return tt.ID, nil
				}
			}
			return "", nil
		},
		func() (string, bool, error) {
			return r.TaxonomyRepository.CreateTreatmentType(ctx, specialtyID, name, description)
		},
	)
}

// CreateProcedure creates a procedure unless the treatment type already has
// one with the name
func (r *TaxonomyRepository) CreateProcedure(ctx context.Context, treatmentTypeID, name, description string) (string, bool, error) {
	return r.createOnce(ctx, entities.TaxonomyLevelProcedure, treatmentTypeID, name,
		func() (string, error) {
			items, err := r.ListProcedures(ctx)
			if err != nil {
				return "", err
			}
			for _, p := range items {
				if p.TreatmentTypeID == treatmentTypeID && p.Name == name {
					return p.ID, nil
				}
			}
			return "", nil
		},
		func() (string, bool, error) {
			return r.TaxonomyRepository.CreateProcedure(ctx, treatmentTypeID, name, description)
		},
	)
}

func (r *TaxonomyRepository) createOnce(
	ctx context.Context,
	level entities.TaxonomyLevel,
	parentID, name string,
	existing func() (string, error),
	create func() (string, bool, error),
) (string, bool, error) {
	key := LeaseKey(level, parentID, name)
	release, err := r.locker.Acquire(ctx, key)
	if err != nil {
		return "", false, apperrors.NewStoreError("failed to acquire taxonomy lease", err)
	}
	defer release()

	id, err := existing()
	if err != nil {
		return "", false, err
	}
	if id != "" {
		observability.LoggerFromContext(ctx).Info().
			Str("taxonomy_level", string(level)).
			Str("name", name).
			Str("id", id).
			Msg("Taxonomy entry created concurrently, reusing it")
		return id, false, nil
	}
	return create()
}
