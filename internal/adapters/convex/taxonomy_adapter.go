package convex

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
)

// TaxonomyAdapter implements TaxonomyRepository over Convex. Convex has no
// unique index, so creates always insert and report created=true; callers
// that need name idempotency wrap it in the lease decorator.
type TaxonomyAdapter struct {
	client caller
}

// ListSpecialties retrieves every specialty
func (a *TaxonomyAdapter) ListSpecialties(ctx context.Context) ([]*entities.Specialty, error) {
	var docs []specialtyDoc
	if err := a.client.Query(ctx, fnGetSpecialties, nil, &docs); err != nil {
		return nil, storeError(fnGetSpecialties, err, "")
	}
	out := make([]*entities.Specialty, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.entity())
	}
	return out, nil
}

// ListTreatmentTypes retrieves every treatment type
func (a *TaxonomyAdapter) ListTreatmentTypes(ctx context.Context) ([]*entities.TreatmentType, error) {
	var docs []treatmentTypeDoc
	if err := a.client.Query(ctx, fnGetTreatmentTypes, nil, &docs); err != nil {
		return nil, storeError(fnGetTreatmentTypes, err, "")
	}
	out := make([]*entities.TreatmentType, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.entity())
	}
	return out, nil
}

// ListProcedures retrieves every procedure
func (a *TaxonomyAdapter) ListProcedures(ctx context.Context) ([]*entities.Procedure, error) {
	var docs []procedureDoc
	if err := a.client.Query(ctx, fnGetProcedures, nil, &docs); err != nil {
		return nil, storeError(fnGetProcedures, err, "")
	}
	out := make([]*entities.Procedure, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.entity())
	}
	return out, nil
}

// CreateSpecialty creates a specialty
func (a *TaxonomyAdapter) CreateSpecialty(ctx context.Context, name, description string) (string, bool, error) {
	return a.create(ctx, fnCreateSpecialty, args{"name": name, "description": description})
}

// CreateTreatmentType creates a treatment type under a specialty
func (a *TaxonomyAdapter) CreateTreatmentType(ctx context.Context, specialtyID, name, description string) (string, bool, error) {
	return a.create(ctx, fnCreateTreatmentType, args{"specialtyId": specialtyID, "name": name, "description": description})
}

// CreateProcedure creates a procedure under a treatment type
func (a *TaxonomyAdapter) CreateProcedure(ctx context.Context, treatmentTypeID, name, description string) (string, bool, error) {
	return a.create(ctx, fnCreateProcedure, args{"treatmentTypeId": treatmentTypeID, "name": name, "description": description})
}

func (a *TaxonomyAdapter) create(ctx context.Context, fn string, fields args) (string, bool, error) {
	var id string
	if err := a.client.Mutation(ctx, fn, fields, &id); err != nil {
		return "", false, storeError(fn, err, "")
	}
	return id, true, nil
}
