package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/providers"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"golang.org/x/sync/errgroup"
)

// Intake task names reported in IntakeReport
const (
	IntakeTaskPatient        = "patient"
	IntakeTaskClassification = "classification"
	IntakeTaskProvider       = "provider"
)

// TaskOutcome reports how one intake task ended
type TaskOutcome struct {
	Task      string `json:"task"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// ClassificationOutcome is the recorded classification of a case
type ClassificationOutcome struct {
	Decision   *entities.ClassificationDecision `json:"decision"`
	Resolution *Resolution                      `json:"resolution"`
}

// IntakeReport summarizes an orchestration run over one case
type IntakeReport struct {
	CaseID         string                 `json:"case_id"`
	Tasks          []TaskOutcome          `json:"tasks,omitempty"`
	Classification *ClassificationOutcome `json:"classification,omitempty"`
	PatientID      string                 `json:"patient_id,omitempty"`
	Provider       string                 `json:"provider,omitempty"`
	Rules          []RuleOutcome          `json:"rules"`
}

// IntakeService orchestrates classification and rule evaluation for cases
type IntakeService struct {
	loader     *DocumentLoader
	classifier *Classifier
	resolver   *TaxonomyResolver
	evaluator  *RuleEvaluator
	patients   *PatientService
	providers  *ProviderService
	cases      repositories.CaseRepository
	events     providers.EventBus
}

// NewIntakeService creates a new intake service
func NewIntakeService(
	loader *DocumentLoader,
	classifier *Classifier,
	resolver *TaxonomyResolver,
	evaluator *RuleEvaluator,
	patients *PatientService,
	providerService *ProviderService,
	cases repositories.CaseRepository,
	events providers.EventBus,
) *IntakeService {
	return &IntakeService{
		loader:     loader,
		classifier: classifier,
		resolver:   resolver,
		evaluator:  evaluator,
		patients:   patients,
		providers:  providerService,
		cases:      cases,
		events:     events,
	}
}

// ProcessCase runs the full intake: patient, classification and provider
// extraction concurrently, then the case is marked new and its rule checks
// are evaluated. Failures of the three extraction tasks are reported in the
// result and do not stop the run.
func (s *IntakeService) ProcessCase(ctx context.Context, caseID string) (*IntakeReport, error) {
	ctx = observability.WithCaseID(ctx, caseID)
	ctx, span := observability.StartSpan(ctx, "intake.ProcessCase")
	defer span.End()

	logger := observability.LoggerFromContext(ctx)

	loaded, err := s.loader.Load(ctx, caseID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	report := &IntakeReport{CaseID: caseID}

	// Each task writes only its own report field and outcome slot.
	tasks := []struct {
		name string
		run  func() error
	}{
		{IntakeTaskPatient, func() error {
			patientID, err := s.patients.ExtractAndLink(ctx, caseID, loaded.Text)
			if err != nil {
				return err
			}
			report.PatientID = patientID
			return nil
		}},
		{IntakeTaskClassification, func() error {
			outcome, err := s.classifyAndRecord(ctx, caseID, loaded.Text)
			if err != nil {
				return err
			}
			report.Classification = outcome
			return nil
		}},
		{IntakeTaskProvider, func() error {
			provider, err := s.providers.ExtractAndRecord(ctx, caseID, loaded.Text)
			if err != nil {
				return err
			}
			report.Provider = provider
			return nil
		}},
	}

	report.Tasks = make([]TaskOutcome, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			report.Tasks[i] = runIntakeTask(ctx, t.name, t.run)
			return nil
		})
	}
	_ = g.Wait()

	if err := s.cases.UpdateCase(ctx, caseID, entities.CaseUpdate{Status: entities.CaseStatusNew}); err != nil {
		observability.RecordError(span, err)
		return nil, storeError(fmt.Sprintf("failed to update status of case %s", caseID), err)
	}

	rules, err := s.evaluateRules(ctx, caseID, loaded.Text)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	report.Rules = rules

	publishCaseEvent(ctx, s.events, caseID, entities.CaseEventTypeIntakeCompleted, map[string]interface{}{
		"status": entities.CaseStatusNew,
	})
	logger.Info().Int("rules", len(rules)).Msg("Case intake completed")
	return report, nil
}

// runIntakeTask runs one intake task, converting a panic into a failed outcome
func runIntakeTask(ctx context.Context, name string, run func() error) (outcome TaskOutcome) {
	logger := observability.LoggerFromContext(ctx)
	outcome.Task = name

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("task", name).Msg("Intake task panicked")
			outcome = TaskOutcome{Task: name, Error: "intake task panicked"}
		}
	}()

	if err := run(); err != nil {
		logger.Error().Err(err).Str("task", name).Msg("Intake task failed")
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Succeeded = true
	return outcome
}

// ClassifyCase classifies the case and records the classification, then
// evaluates its rule checks. Classification failures are returned.
func (s *IntakeService) ClassifyCase(ctx context.Context, caseID string) (*IntakeReport, error) {
	ctx = observability.WithCaseID(ctx, caseID)
	ctx, span := observability.StartSpan(ctx, "intake.ClassifyCase")
	defer span.End()

	loaded, err := s.loader.Load(ctx, caseID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	outcome, err := s.classifyAndRecord(ctx, caseID, loaded.Text)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	rules, err := s.evaluateRules(ctx, caseID, loaded.Text)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	return &IntakeReport{
		CaseID:         caseID,
		Classification: outcome,
		Rules:          rules,
	}, nil
}

// ProcessRules evaluates the case's current rule checks
func (s *IntakeService) ProcessRules(ctx context.Context, caseID string) (*IntakeReport, error) {
	ctx = observability.WithCaseID(ctx, caseID)
	ctx, span := observability.StartSpan(ctx, "intake.ProcessRules")
	defer span.End()

	loaded, err := s.loader.Load(ctx, caseID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	rules, err := s.evaluateRules(ctx, caseID, loaded.Text)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	return &IntakeReport{CaseID: caseID, Rules: rules}, nil
}

// classifyAndRecord runs the classifier and resolver and writes the
// classification to the case. Every error is returned.
func (s *IntakeService) classifyAndRecord(ctx context.Context, caseID, documentText string) (*ClassificationOutcome, error) {
	classification, err := s.classifier.Classify(ctx, documentText)
	if err != nil {
		return nil, err
	}

	resolution, err := s.resolver.Resolve(ctx, classification.Decision, classification.Snapshot)
	if err != nil {
		return nil, err
	}

	err = s.cases.ClassifyCase(ctx, &entities.CaseClassification{
		CaseID:          caseID,
		SpecialtyID:     resolution.SpecialtyID,
		TreatmentTypeID: resolution.TreatmentTypeID,
		ProcedureID:     resolution.ProcedureID,
		ClassifiedBy:    entities.CreatedByAI,
	})
	if err != nil {
		return nil, storeError(fmt.Sprintf("failed to record classification of case %s", caseID), err)
	}

	publishCaseEvent(ctx, s.events, caseID, entities.CaseEventTypeClassified, map[string]interface{}{
		"specialty_id":      resolution.SpecialtyID,
		"treatment_type_id": resolution.TreatmentTypeID,
		"procedure_id":      resolution.ProcedureID,
		"procedure_is_new":  resolution.ProcedureIsNew,
	})

	return &ClassificationOutcome{
		Decision:   classification.Decision,
		Resolution: resolution,
	}, nil
}

func (s *IntakeService) evaluateRules(ctx context.Context, caseID, documentText string) ([]RuleOutcome, error) {
	checks, err := s.cases.GetRuleChecks(ctx, caseID)
	if err != nil {
		return nil, storeError(fmt.Sprintf("failed to load rule checks of case %s", caseID), err)
	}
	return s.evaluator.EvaluateAll(ctx, caseID, documentText, checks), nil
}
