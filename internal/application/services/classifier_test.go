package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/referralintake/internal/application/services"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

func TestClassifier_Classify(t *testing.T) {
	t.Run("classifies against the rendered taxonomy", func(t *testing.T) {
		provider := new(MockExtractionProvider)
		repo := new(MockTaxonomyRepository)
		classifier := services.NewClassifier(services.NewExtractor(provider, time.Second, nil), repo, "")

		expectCardiologySnapshot(repo)
		provider.On("Run", mock.Anything, task(services.TaskProcedureSummary), "referral text", mock.Anything).
			Run(fill(entities.ProcedureSummary{
				ProcedureName:   "Exercise stress test",
				Description:     "Treadmill stress test",
				RelevantDetails: "Chest pain on exertion",
			})).
			Return(nil)
		provider.On("Run", mock.Anything, task(services.TaskClassification),
			mock.MatchedBy(func(input string) bool {
				return strings.Contains(input, "Cardiology - Heart and cardiovascular system care\n") &&
					strings.Contains(input, "\t\tInitial Cardiac Consult - First cardiology visit\n") &&
					strings.Contains(input, "Procedure Requested:\n Exercise stress test\n")
			}), mock.Anything).
			Run(fill(entities.ClassificationDecision{
				Specialty:     "Cardiology",
				TreatmentType: "Consultation",
				Procedure:     "Stress Test",
				Evidence:      []string{"chest pain on exertion"},
			})).
			Return(nil)

		result, err := classifier.Classify(context.Background(), "referral text")

		require.NoError(t, err)
		assert.Equal(t, "Stress Test", result.Decision.Procedure)
		assert.Equal(t, "Exercise stress test", result.Summary.ProcedureName)
		assert.Equal(t, "spec-cardio", result.Snapshot.FindSpecialtyByName("Cardiology").ID)
		repo.AssertNotCalled(t, "CreateSpecialty", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CreateProcedure", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		provider.AssertExpectations(t)
	})

	t.Run("summary failure fails the call before reading the store", func(t *testing.T) {
		provider := new(MockExtractionProvider)
		repo := new(MockTaxonomyRepository)
		classifier := services.NewClassifier(services.NewExtractor(provider, time.Second, nil), repo, "")

		provider.On("Run", mock.Anything, task(services.TaskProcedureSummary), mock.Anything, mock.Anything).
			Return(errors.New("model unavailable"))

		result, err := classifier.Classify(context.Background(), "referral text")

		assert.Nil(t, result)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExtraction))
		repo.AssertNotCalled(t, "ListSpecialties", mock.Anything)
	})

	t.Run("integrity error in store snapshot", func(t *testing.T) {
		provider := new(MockExtractionProvider)
		repo := new(MockTaxonomyRepository)
		classifier := services.NewClassifier(services.NewExtractor(provider, time.Second, nil), repo, "")

		provider.On("Run", mock.Anything, task(services.TaskProcedureSummary), mock.Anything, mock.Anything).
			Run(fill(entities.ProcedureSummary{ProcedureName: "Echo"})).
			Return(nil)
		repo.On("ListSpecialties", mock.Anything).Return([]*entities.Specialty{}, nil)
		repo.On("ListTreatmentTypes", mock.Anything).Return([]*entities.TreatmentType{
			{ID: "t1", SpecialtyID: "gone", Name: "Diagnostics"},
		}, nil)
		repo.On("ListProcedures", mock.Anything).Return([]*entities.Procedure{}, nil)

		_, err := classifier.Classify(context.Background(), "referral text")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTaxonomyIntegrity))
		provider.AssertNotCalled(t, "Run", mock.Anything, task(services.TaskClassification), mock.Anything, mock.Anything)
	})
}
