package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/referralintake/internal/application/services"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

func TestBuildTaxonomyIndex_LookupsAndRender(t *testing.T) {
	specialties := []*entities.Specialty{
		{ID: "s1", Name: "Ophthalmology", Description: "Eye care"},
		{ID: "s2", Name: "Cardiology", Description: "Heart care"},
	}
	treatmentTypes := []*entities.TreatmentType{
		{ID: "t1", SpecialtyID: "s1", Name: "Diagnostics", Description: "Eye tests"},
		{ID: "t2", SpecialtyID: "s2", Name: "Consultation", Description: "Cardiac visits"},
	}
	procedures := []*entities.Procedure{
		{ID: "p1", TreatmentTypeID: "t1", Name: "OCT Scan", Description: "Retinal imaging"},
		{ID: "p2", TreatmentTypeID: "t2", Name: "Initial Cardiac Consult", Description: "First visit"},
	}

	idx, err := services.BuildTaxonomyIndex(specialties, treatmentTypes, procedures)
	require.NoError(t, err)

	assert.Equal(t, "s2", idx.FindSpecialtyByName("Cardiology").ID)
	assert.Equal(t, "t1", idx.FindTreatmentTypeByName("Diagnostics").ID)
	assert.Equal(t, "p2", idx.FindProcedureByName("Initial Cardiac Consult").ID)
	assert.Nil(t, idx.FindSpecialtyByName("cardiology"), "lookups are case-sensitive")
	assert.Nil(t, idx.FindProcedureByName("Stress Test"))

	expected := "Ophthalmology - Eye care\n" +
		"\tDiagnostics - Eye tests\n" +
		"\t\tOCT Scan - Retinal imaging\n" +
		"Cardiology - Heart care\n" +
		"\tConsultation - Cardiac visits\n" +
		"\t\tInitial Cardiac Consult - First visit\n"
	assert.Equal(t, expected, idx.Render())

	s, tt, p := idx.Counts()
	assert.Equal(t, 2, s)
	assert.Equal(t, 2, tt)
	assert.Equal(t, 2, p)
}

func TestBuildTaxonomyIndex_FirstDuplicateNameWins(t *testing.T) {
	idx, err := services.BuildTaxonomyIndex(
		[]*entities.Specialty{
			{ID: "s1", Name: "Ophthalmology"},
			{ID: "s2", Name: "Cardiology"},
		},
		[]*entities.TreatmentType{
			{ID: "t1", SpecialtyID: "s1", Name: "Consultation"},
			{ID: "t2", SpecialtyID: "s2", Name: "Consultation"},
		},
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, "t1", idx.FindTreatmentTypeByName("Consultation").ID)
}

func TestBuildTaxonomyIndex_UnknownParentFails(t *testing.T) {
	t.Run("treatment type with unknown specialty", func(t *testing.T) {
		_, err := services.BuildTaxonomyIndex(
			[]*entities.Specialty{{ID: "s1", Name: "Cardiology"}},
			[]*entities.TreatmentType{{ID: "t1", SpecialtyID: "missing", Name: "Consultation"}},
			nil,
		)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTaxonomyIntegrity))
	})

	t.Run("procedure with unknown treatment type", func(t *testing.T) {
		_, err := services.BuildTaxonomyIndex(
			[]*entities.Specialty{{ID: "s1", Name: "Cardiology"}},
			[]*entities.TreatmentType{{ID: "t1", SpecialtyID: "s1", Name: "Consultation"}},
			[]*entities.Procedure{{ID: "p1", TreatmentTypeID: "t9", Name: "Echo"}},
		)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTaxonomyIntegrity))
	})
}

func TestTaxonomyIndex_AddBackfillsIDs(t *testing.T) {
	idx, err := services.BuildTaxonomyIndex(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "", idx.Render())

	idx.AddSpecialty("s-new", "Dermatology", "Skin care")
	_, err = idx.AddTreatmentType("t-new", "s-new", "Procedure or Surgery", "Skin surgery")
	require.NoError(t, err)
	_, err = idx.AddProcedure("p-new", "t-new", "Mohs Surgery", "Layered excision")
	require.NoError(t, err)

	assert.Equal(t, "s-new", idx.FindSpecialtyByName("Dermatology").ID)
	assert.Equal(t, "p-new", idx.FindProcedureByName("Mohs Surgery").ID)
	assert.Contains(t, idx.Render(), "\t\tMohs Surgery - Layered excision\n")

	_, err = idx.AddProcedure("p-orphan", "t-missing", "Orphan", "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTaxonomyIntegrity))
}

func TestLoadTaxonomyIndex_WrapsStoreErrors(t *testing.T) {
	repo := new(MockTaxonomyRepository)
	repo.On("ListSpecialties", mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := services.LoadTaxonomyIndex(context.Background(), repo)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStore))
	repo.AssertNotCalled(t, "ListTreatmentTypes", mock.Anything)
}
