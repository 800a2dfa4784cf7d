package services

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// Classification is the read-only result of classifying a referral: the
// extracted procedure summary, the decision, and the taxonomy snapshot the
// decision was made against.
type Classification struct {
	Summary  *entities.ProcedureSummary
	Decision *entities.ClassificationDecision
	Snapshot *TaxonomyIndex
}

// Classifier places referral text in the taxonomy. It never writes to the store.
type Classifier struct {
	extractor *Extractor
	taxonomy  repositories.TaxonomyRepository
	model     string
}

// NewClassifier creates a new classifier
func NewClassifier(extractor *Extractor, taxonomy repositories.TaxonomyRepository, model string) *Classifier {
	return &Classifier{
		extractor: extractor,
		taxonomy:  taxonomy,
		model:     model,
	}
}

// Classify extracts the requested procedure from the document text and asks
// for a classification against the current taxonomy.
func (c *Classifier) Classify(ctx context.Context, documentText string) (*Classification, error) {
	ctx, span := observability.StartSpan(ctx, "classifier.Classify")
	defer span.End()

	summary, err := runExtraction[entities.ProcedureSummary](ctx, c.extractor, procedureSummarySpec(c.model), documentText)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	snapshot, err := LoadTaxonomyIndex(ctx, c.taxonomy)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	decision, err := runExtraction[entities.ClassificationDecision](ctx, c.extractor, classificationSpec(c.model),
		classificationInput(snapshot.Render(), summary))
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.SetSpanAttributes(span,
		attribute.String("taxonomy.specialty", decision.Specialty),
		attribute.String("taxonomy.treatment_type", decision.TreatmentType),
		attribute.String("taxonomy.procedure", decision.Procedure),
	)
	observability.LoggerFromContext(ctx).Info().
		Str("requested_procedure", summary.ProcedureName).
		Str("specialty", decision.Specialty).
		Str("treatment_type", decision.TreatmentType).
		Str("procedure", decision.Procedure).
		Msg("Referral classified")

	return &Classification{
		Summary:  summary,
		Decision: decision,
		Snapshot: snapshot,
	}, nil
}
