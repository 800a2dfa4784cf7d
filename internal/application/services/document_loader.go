package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/providers"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// LoadedCase is a case together with the text of the document being processed
type LoadedCase struct {
	Case     *entities.Case
	Document *entities.CaseDocument
	Text     string
}

// DocumentLoader fetches a case and materializes its referral document as text
type DocumentLoader struct {
	cases     repositories.CaseRepository
	converter providers.DocumentTextProvider
	extractor *Extractor
	structure bool
	model     string
}

// NewDocumentLoader creates a new document loader. When structure is true the
// text is prefixed with an outline of the document.
func NewDocumentLoader(cases repositories.CaseRepository, converter providers.DocumentTextProvider, extractor *Extractor, structure bool, model string) *DocumentLoader {
	return &DocumentLoader{
		cases:     cases,
		converter: converter,
		extractor: extractor,
		structure: structure && extractor != nil,
		model:     model,
	}
}

// Load returns the case and the text of its first document
func (l *DocumentLoader) Load(ctx context.Context, caseID string) (*LoadedCase, error) {
	ctx, span := observability.StartSpan(ctx, "documents.Load")
	defer span.End()

	c, err := l.cases.GetCaseWithDocuments(ctx, caseID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, storeError(fmt.Sprintf("failed to load case %s", caseID), err)
	}

	doc := c.PrimaryDocument()
	if doc == nil || doc.FileURL == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("case %s has no document to process", caseID))
	}

	text, err := l.converter.ToText(ctx, doc.FileURL)
	if err != nil {
		observability.RecordError(span, err)
		if apperrors.IsType(err, apperrors.ErrorTypeExternal) || apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			return nil, err
		}
		return nil, apperrors.NewExternalError(fmt.Sprintf("failed to convert document %s", doc.FileName), err)
	}

	if l.structure {
		text = l.withStructure(ctx, text)
	}

	return &LoadedCase{Case: c, Document: doc, Text: text}, nil
}

func (l *DocumentLoader) withStructure(ctx context.Context, text string) string {
	outline, err := runExtraction[entities.DocumentStructure](ctx, l.extractor, documentStructureSpec(l.model), text)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to outline document, using plain text")
		return text
	}
	structure := strings.TrimSpace(outline.Structure)
	if structure == "" {
		return text
	}
	return "Structure:\n" + structure + "\nContent:\n" + text
}
