package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
)

// ProviderService extracts the referring provider's name and records it on the case
type ProviderService struct {
	extractor *Extractor
	cases     repositories.CaseRepository
	model     string
}

// NewProviderService creates a new provider service
func NewProviderService(extractor *Extractor, cases repositories.CaseRepository, model string) *ProviderService {
	return &ProviderService{
		extractor: extractor,
		cases:     cases,
		model:     model,
	}
}

// ExtractAndRecord returns the provider name found in the document. A
// non-empty name is written to the case.
func (s *ProviderService) ExtractAndRecord(ctx context.Context, caseID, documentText string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "providers.ExtractAndRecord")
	defer span.End()

	info, err := runExtraction[entities.ProviderInfo](ctx, s.extractor, providerNameSpec(s.model), documentText)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	if info.Name == "" {
		observability.LoggerFromContext(ctx).Info().Msg("No provider name found in document")
		return "", nil
	}

	if err := s.cases.UpdateCase(ctx, caseID, entities.CaseUpdate{Provider: info.Name}); err != nil {
		observability.RecordError(span, err)
		return "", storeError(fmt.Sprintf("failed to record provider on case %s", caseID), err)
	}
	return info.Name, nil
}
