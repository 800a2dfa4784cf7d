package locking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

type mockTaxonomy struct {
	mock.Mock
}

func (m *mockTaxonomy) ListSpecialties(ctx context.Context) ([]*entities.Specialty, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Specialty), args.Error(1)
}

func (m *mockTaxonomy) ListTreatmentTypes(ctx context.Context) ([]*entities.TreatmentType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TreatmentType), args.Error(1)
}

func (m *mockTaxonomy) ListProcedures(ctx context.Context) ([]*entities.Procedure, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Procedure), args.Error(1)
}

func (m *mockTaxonomy) CreateSpecialty(ctx context.Context, name, description string) (string, bool, error) {
	args := m.Called(ctx, name, description)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockTaxonomy) CreateTreatmentType(ctx context.Context, specialtyID, name, description string) (string, bool, error) {
	args := m.Called(ctx, specialtyID, name, description)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockTaxonomy) CreateProcedure(ctx context.Context, treatmentTypeID, name, description string) (string, bool, error) {
	args := m.Called(ctx, treatmentTypeID, name, description)
	return args.String(0), args.Bool(1), args.Error(2)
}

// recordingLocker grants every lease and records the keys and releases
type recordingLocker struct {
	mu       sync.Mutex
	keys     []string
	released int
	err      error
}

func (l *recordingLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func TestLeaseKey(t *testing.T) {
	assert.Equal(t, "taxonomy:specialty::Cardiology", LeaseKey(entities.TaxonomyLevelSpecialty, "", "Cardiology"))
	assert.Equal(t, "taxonomy:procedure:tt-1:Echocardiogram", LeaseKey(entities.TaxonomyLevelProcedure, "tt-1", "Echocardiogram"))
}

func TestTaxonomyRepository_CreateSpecialty(t *testing.T) {
	ctx := context.Background()

	t.Run("creates when absent", func(t *testing.T) {
		inner := new(mockTaxonomy)
		locker := &recordingLocker{}
		inner.On("ListSpecialties", mock.Anything).Return([]*entities.Specialty{{ID: "s1", Name: "Neurology"}}, nil)
		inner.On("CreateSpecialty", mock.Anything, "Cardiology", "Heart care").Return("s2", true, nil)

		id, created, err := NewTaxonomyRepository(inner, locker).CreateSpecialty(ctx, "Cardiology", "Heart care")

		require.NoError(t, err)
		assert.Equal(t, "s2", id)
		assert.True(t, created)
		assert.Equal(t, []string{"taxonomy:specialty::Cardiology"}, locker.keys)
		assert.Equal(t, 1, locker.released)
	})

	t.Run("reuses an entry created by another run", func(t *testing.T) {
		inner := new(mockTaxonomy)
		locker := &recordingLocker{}
		inner.On("ListSpecialties", mock.Anything).Return([]*entities.Specialty{{ID: "s1", Name: "Cardiology"}}, nil)

		id, created, err := NewTaxonomyRepository(inner, locker).CreateSpecialty(ctx, "Cardiology", "Heart care")

		require.NoError(t, err)
		assert.Equal(t, "s1", id)
		assert.False(t, created)
		inner.AssertNotCalled(t, "CreateSpecialty", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 1, locker.released)
	})

	t.Run("lease failure is a store error", func(t *testing.T) {
		inner := new(mockTaxonomy)
		locker := &recordingLocker{err: errors.New("redis unavailable")}

		_, _, err := NewTaxonomyRepository(inner, locker).CreateSpecialty(ctx, "Cardiology", "")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStore))
		inner.AssertNotCalled(t, "ListSpecialties", mock.Anything)
	})
}

func TestTaxonomyRepository_ScopedToParent(t *testing.T) {
	ctx := context.Background()
	inner := new(mockTaxonomy)
	locker := &recordingLocker{}
	inner.On("ListTreatmentTypes", mock.Anything).Return([]*entities.TreatmentType{
		{ID: "tt-ortho", SpecialtyID: "s-ortho", Name: "Consultation"},
	}, nil)
	inner.On("CreateTreatmentType", mock.Anything, "s-cardio", "Consultation", "").Return("tt-cardio", true, nil)
	inner.On("ListProcedures", mock.Anything).Return([]*entities.Procedure{
		{ID: "p1", TreatmentTypeID: "tt-cardio", Name: "Echocardiogram"},
	}, nil)

	repo := NewTaxonomyRepository(inner, locker)

	id, created, err := repo.CreateTreatmentType(ctx, "s-cardio", "Consultation", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "tt-cardio", id)

	id, created, err = repo.CreateProcedure(ctx, "tt-cardio", "Echocardiogram", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "p1", id)

	assert.Equal(t, []string{
		"taxonomy:treatment_type:s-cardio:Consultation",
		"taxonomy:procedure:tt-cardio:Echocardiogram",
	}, locker.keys)
}

func TestTaxonomyRepository_ListErrorReleasesLease(t *testing.T) {
	inner := new(mockTaxonomy)
	locker := &recordingLocker{}
	inner.On("ListProcedures", mock.Anything).Return(nil, apperrors.NewStoreError("list failed", nil))

	_, _, err := NewTaxonomyRepository(inner, locker).CreateProcedure(context.Background(), "tt-1", "Echocardiogram", "")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStore))
	assert.Equal(t, 1, locker.released)
}
