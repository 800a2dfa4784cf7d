package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/referralintake/internal/application/services"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

func caseWithDocument(id string) *entities.Case {
	return &entities.Case{
		ID:     id,
		Status: entities.CaseStatusProcessing,
		Documents: []entities.CaseDocument{
			{ID: "doc-1", CaseID: id, FileName: "referral.pdf", FileURL: "https://files.example.com/referral.pdf", FileType: "application/pdf"},
			{ID: "doc-2", CaseID: id, FileName: "labs.pdf", FileURL: "https://files.example.com/labs.pdf", FileType: "application/pdf"},
		},
	}
}

func TestDocumentLoader_Load(t *testing.T) {
	t.Run("converts the first document", func(t *testing.T) {
		cases := new(MockCaseRepository)
		converter := new(MockDocumentTextProvider)
		loader := services.NewDocumentLoader(cases, converter, nil, false, "")

		cases.On("GetCaseWithDocuments", mock.Anything, "case-1").Return(caseWithDocument("case-1"), nil)
		converter.On("ToText", mock.Anything, "https://files.example.com/referral.pdf").Return("referral text", nil)

		loaded, err := loader.Load(context.Background(), "case-1")

		require.NoError(t, err)
		assert.Equal(t, "referral text", loaded.Text)
		assert.Equal(t, "doc-1", loaded.Document.ID)
		converter.AssertNumberOfCalls(t, "ToText", 1)
	})

	t.Run("case without documents", func(t *testing.T) {
		cases := new(MockCaseRepository)
		converter := new(MockDocumentTextProvider)
		loader := services.NewDocumentLoader(cases, converter, nil, false, "")

		cases.On("GetCaseWithDocuments", mock.Anything, "case-1").Return(&entities.Case{ID: "case-1"}, nil)

		_, err := loader.Load(context.Background(), "case-1")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("missing case keeps not found", func(t *testing.T) {
		cases := new(MockCaseRepository)
		loader := services.NewDocumentLoader(cases, new(MockDocumentTextProvider), nil, false, "")

		cases.On("GetCaseWithDocuments", mock.Anything, "nope").Return(nil, apperrors.NewNotFoundError("case not found"))

		_, err := loader.Load(context.Background(), "nope")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("conversion failure is external", func(t *testing.T) {
		cases := new(MockCaseRepository)
		converter := new(MockDocumentTextProvider)
		loader := services.NewDocumentLoader(cases, converter, nil, false, "")

		cases.On("GetCaseWithDocuments", mock.Anything, "case-1").Return(caseWithDocument("case-1"), nil)
		converter.On("ToText", mock.Anything, mock.Anything).Return("", errors.New("bad pdf"))

		_, err := loader.Load(context.Background(), "case-1")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	})

	t.Run("structure preamble", func(t *testing.T) {
		cases := new(MockCaseRepository)
		converter := new(MockDocumentTextProvider)
		provider := new(MockExtractionProvider)
		loader := services.NewDocumentLoader(cases, converter, services.NewExtractor(provider, time.Second, nil), true, "")

		cases.On("GetCaseWithDocuments", mock.Anything, "case-1").Return(caseWithDocument("case-1"), nil)
		converter.On("ToText", mock.Anything, mock.Anything).Return("body", nil)
		provider.On("Run", mock.Anything, task(services.TaskDocumentStructure), "body", mock.Anything).
			Run(fill(entities.DocumentStructure{Structure: "- Referral\n- History"})).Return(nil)

		loaded, err := loader.Load(context.Background(), "case-1")

		require.NoError(t, err)
		assert.Equal(t, "Structure:\n- Referral\n- History\nContent:\nbody", loaded.Text)
	})

	t.Run("structure failure degrades to plain text", func(t *testing.T) {
		cases := new(MockCaseRepository)
		converter := new(MockDocumentTextProvider)
		provider := new(MockExtractionProvider)
		loader := services.NewDocumentLoader(cases, converter, services.NewExtractor(provider, time.Second, nil), true, "")

		cases.On("GetCaseWithDocuments", mock.Anything, "case-1").Return(caseWithDocument("case-1"), nil)
		converter.On("ToText", mock.Anything, mock.Anything).Return("body", nil)
		provider.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("timeout"))

		loaded, err := loader.Load(context.Background(), "case-1")

		require.NoError(t, err)
		assert.Equal(t, "body", loaded.Text)
	})
}
