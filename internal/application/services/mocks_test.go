package services_test

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/referralintake/internal/application/services"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/providers"
)

// Mocks

type MockExtractionProvider struct {
	mock.Mock
}

func (m *MockExtractionProvider) Run(ctx context.Context, spec providers.AgentSpec, input string, out interface{}) error {
	args := m.Called(ctx, spec, input, out)
	return args.Error(0)
}

// task matches an AgentSpec by task name
func task(name string) interface{} {
	return mock.MatchedBy(func(spec providers.AgentSpec) bool { return spec.Name == name })
}

// fill decodes value into the extraction output argument
func fill(value interface{}) func(mock.Arguments) {
	return func(args mock.Arguments) {
		data, err := json.Marshal(value)
		if err != nil {
			panic(err)
		}
		if err := json.Unmarshal(data, args.Get(3)); err != nil {
			panic(err)
		}
	}
}

type MockTaxonomyRepository struct {
	mock.Mock
}

func (m *MockTaxonomyRepository) ListSpecialties(ctx context.Context) ([]*entities.Specialty, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Specialty), args.Error(1)
}

func (m *MockTaxonomyRepository) ListTreatmentTypes(ctx context.Context) ([]*entities.TreatmentType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TreatmentType), args.Error(1)
}

func (m *MockTaxonomyRepository) ListProcedures(ctx context.Context) ([]*entities.Procedure, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Procedure), args.Error(1)
}

func (m *MockTaxonomyRepository) CreateSpecialty(ctx context.Context, name, description string) (string, bool, error) {
	args := m.Called(ctx, name, description)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockTaxonomyRepository) CreateTreatmentType(ctx context.Context, specialtyID, name, description string) (string, bool, error) {
	args := m.Called(ctx, specialtyID, name, description)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockTaxonomyRepository) CreateProcedure(ctx context.Context, treatmentTypeID, name, description string) (string, bool, error) {
	args := m.Called(ctx, treatmentTypeID, name, description)
	return args.String(0), args.Bool(1), args.Error(2)
}

type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) CreateRule(ctx context.Context, title, description, createdBy string) (string, error) {
	args := m.Called(ctx, title, description, createdBy)
	return args.String(0), args.Error(1)
}

func (m *MockRuleRepository) AddRuleToProcedure(ctx context.Context, procedureID, ruleID string) error {
	args := m.Called(ctx, procedureID, ruleID)
	return args.Error(0)
}

func (m *MockRuleRepository) ListRulesForProcedure(ctx context.Context, procedureID string) ([]*entities.Rule, error) {
	args := m.Called(ctx, procedureID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Rule), args.Error(1)
}

type MockCaseRepository struct {
	mock.Mock
}

func (m *MockCaseRepository) GetCaseWithDocuments(ctx context.Context, caseID string) (*entities.Case, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Case), args.Error(1)
}

func (m *MockCaseRepository) GetRuleChecks(ctx context.Context, caseID string) ([]*entities.RuleCheck, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.RuleCheck), args.Error(1)
}

func (m *MockCaseRepository) UpdateCase(ctx context.Context, caseID string, update entities.CaseUpdate) error {
	args := m.Called(ctx, caseID, update)
	return args.Error(0)
}

func (m *MockCaseRepository) ClassifyCase(ctx context.Context, classification *entities.CaseClassification) error {
	args := m.Called(ctx, classification)
	return args.Error(0)
}

func (m *MockCaseRepository) UpdateRuleCheck(ctx context.Context, caseID, ruleTitle string, evaluation *entities.RuleEvaluation) error {
	args := m.Called(ctx, caseID, ruleTitle, evaluation)
	return args.Error(0)
}

type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) FindByEmail(ctx context.Context, email string) (*entities.Patient, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

func (m *MockPatientRepository) FindByPhone(ctx context.Context, phone string) (*entities.Patient, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

func (m *MockPatientRepository) Create(ctx context.Context, patient *entities.Patient) error {
	args := m.Called(ctx, patient)
	return args.Error(0)
}

type MockDocumentTextProvider struct {
	mock.Mock
}

func (m *MockDocumentTextProvider) ToText(ctx context.Context, fileURL string) (string, error) {
	args := m.Called(ctx, fileURL)
	return args.String(0), args.Error(1)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.CaseEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.CaseEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.CaseEvent), args.Error(1)
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockRuleGenerationTrigger struct {
	mock.Mock
}

func (m *MockRuleGenerationTrigger) GenerateRules(ctx context.Context, req services.RuleGenerationRequest) bool {
	args := m.Called(ctx, req)
	return args.Bool(0)
}

// Fixtures

func cardiologySnapshot() ([]*entities.Specialty, []*entities.TreatmentType, []*entities.Procedure) {
	return []*entities.Specialty{
			{ID: "spec-cardio", Name: "Cardiology", Description: "Heart and cardiovascular system care"},
		}, []*entities.TreatmentType{
			{ID: "tt-consult", SpecialtyID: "spec-cardio", Name: "Consultation", Description: "Initial cardiac consultations and evaluations"},
		}, []*entities.Procedure{
			{ID: "proc-initial", TreatmentTypeID: "tt-consult", Name: "Initial Cardiac Consult", Description: "First cardiology visit"},
		}
}

func expectCardiologySnapshot(repo *MockTaxonomyRepository) {
	specialties, treatmentTypes, procedures := cardiologySnapshot()
	repo.On("ListSpecialties", mock.Anything).Return(specialties, nil)
	repo.On("ListTreatmentTypes", mock.Anything).Return(treatmentTypes, nil)
	repo.On("ListProcedures", mock.Anything).Return(procedures, nil)
}
