package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// RuleGenerationTrigger generates rules for a newly created procedure and
// reports whether any were created. It never fails.
type RuleGenerationTrigger interface {
	GenerateRules(ctx context.Context, req RuleGenerationRequest) bool
}

// Resolution holds the taxonomy IDs a classification decision resolved to
type Resolution struct {
	SpecialtyID     string `json:"specialty_id"`
	TreatmentTypeID string `json:"treatment_type_id"`
	ProcedureID     string `json:"procedure_id"`
	ProcedureIsNew  bool   `json:"procedure_is_new"`
	RulesGenerated  bool   `json:"rules_generated"`
}

// TaxonomyResolver finds or creates each taxonomy level for a decision,
// strictly top-down.
type TaxonomyResolver struct {
	taxonomy repositories.TaxonomyRepository
	trigger  RuleGenerationTrigger
	metrics  *observability.Metrics
}

// NewTaxonomyResolver creates a new taxonomy resolver
func NewTaxonomyResolver(taxonomy repositories.TaxonomyRepository, trigger RuleGenerationTrigger, metrics *observability.Metrics) *TaxonomyResolver {
	return &TaxonomyResolver{
		taxonomy: taxonomy,
		trigger:  trigger,
		metrics:  metrics,
	}
}

// Resolve maps the decision onto taxonomy IDs, creating missing entries and
// recording them in the snapshot. A store failure stops resolution at that
// level, so a child is never created without its parent. Rule generation
// runs once when the procedure is created and its outcome never fails the
// resolution.
func (r *TaxonomyResolver) Resolve(ctx context.Context, decision *entities.ClassificationDecision, snapshot *TaxonomyIndex) (*Resolution, error) {
	ctx, span := observability.StartSpan(ctx, "resolver.Resolve")
	defer span.End()

	logger := observability.LoggerFromContext(ctx)
	res := &Resolution{}

	// 1. Specialty
	if s := snapshot.FindSpecialtyByName(decision.Specialty); s != nil {
		res.SpecialtyID = s.ID
	} else {
		id, created, err := r.taxonomy.CreateSpecialty(ctx, decision.Specialty, decision.SpecialtyDescription)
		if err != nil {
			observability.RecordError(span, err)
			return nil, storeError(fmt.Sprintf("failed to create specialty %q", decision.Specialty), err)
		}
		snapshot.AddSpecialty(id, decision.Specialty, decision.SpecialtyDescription)
		res.SpecialtyID = id
		r.recordCreated(ctx, entities.TaxonomyLevelSpecialty, decision.Specialty, id, created)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Treatment type, matched by name across all specialties
	if tt := snapshot.FindTreatmentTypeByName(decision.TreatmentType); tt != nil {
		res.TreatmentTypeID = tt.ID
		if tt.SpecialtyID != res.SpecialtyID {
			logger.Warn().
				Str("treatment_type", tt.Name).
				Str("treatment_type_specialty_id", tt.SpecialtyID).
				Str("specialty_id", res.SpecialtyID).
				Msg("Matched treatment type belongs to a different specialty")
		}
	} else {
		id, created, err := r.taxonomy.CreateTreatmentType(ctx, res.SpecialtyID, decision.TreatmentType, decision.TreatmentTypeDescription)
		if err != nil {
			observability.RecordError(span, err)
			return nil, storeError(fmt.Sprintf("failed to create treatment type %q", decision.TreatmentType), err)
		}
		if _, err := snapshot.AddTreatmentType(id, res.SpecialtyID, decision.TreatmentType, decision.TreatmentTypeDescription); err != nil {
			return nil, err
		}
		res.TreatmentTypeID = id
		r.recordCreated(ctx, entities.TaxonomyLevelTreatmentType, decision.TreatmentType, id, created)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Procedure
	if p := snapshot.FindProcedureByName(decision.Procedure); p != nil {
		res.ProcedureID = p.ID
	} else {
		id, created, err := r.taxonomy.CreateProcedure(ctx, res.TreatmentTypeID, decision.Procedure, decision.ProcedureDescription)
		if err != nil {
			observability.RecordError(span, err)
			return nil, storeError(fmt.Sprintf("failed to create procedure %q", decision.Procedure), err)
		}
		if _, err := snapshot.AddProcedure(id, res.TreatmentTypeID, decision.Procedure, decision.ProcedureDescription); err != nil {
			return nil, err
		}
		res.ProcedureID = id
		res.ProcedureIsNew = created
		r.recordCreated(ctx, entities.TaxonomyLevelProcedure, decision.Procedure, id, created)
	}

	observability.SetSpanAttributes(span,
		attribute.String("taxonomy.procedure_id", res.ProcedureID),
		attribute.Bool("taxonomy.procedure_is_new", res.ProcedureIsNew),
	)

	if res.ProcedureIsNew && r.trigger != nil {
		res.RulesGenerated = r.trigger.GenerateRules(ctx, RuleGenerationRequest{
			ProcedureID:              res.ProcedureID,
			ProcedureName:            decision.Procedure,
			ProcedureDescription:     decision.ProcedureDescription,
			SpecialtyName:            decision.Specialty,
			TreatmentTypeName:        decision.TreatmentType,
			SpecialtyDescription:     decision.SpecialtyDescription,
			TreatmentTypeDescription: decision.TreatmentTypeDescription,
		})
		if !res.RulesGenerated {
			logger.Error().
				Str("procedure", decision.Procedure).
				Str("procedure_id", res.ProcedureID).
				Msg("Failed to generate rules for new procedure")
		}
	}

	return res, nil
}

func (r *TaxonomyResolver) recordCreated(ctx context.Context, level entities.TaxonomyLevel, name, id string, created bool) {
	logger := observability.LoggerFromContext(ctx)
	if !created {
		logger.Info().
			Str("taxonomy_level", string(level)).
			Str("name", name).
			Str("id", id).
			Msg("Taxonomy entry already existed in store")
		return
	}
	observability.RecordTaxonomyCreated(ctx, r.metrics, string(level))
	logger.Info().
		Str("taxonomy_level", string(level)).
		Str("name", name).
		Str("id", id).
		Msg("Created taxonomy entry")
}
