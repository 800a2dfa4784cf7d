package services

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/providers"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// RuleOutcome is the result of evaluating one rule check
type RuleOutcome struct {
	RuleTitle string              `json:"rule_title"`
	Status    entities.RuleStatus `json:"status,omitempty"`
	Updated   bool                `json:"updated"`
	Skipped   bool                `json:"skipped,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// RuleEvaluator evaluates a case's rule checks against its document
// concurrently. A failing rule never affects the others.
type RuleEvaluator struct {
	extractor   *Extractor
	cases       repositories.CaseRepository
	events      providers.EventBus
	concurrency int
	model       string
	metrics     *observability.Metrics
}

// NewRuleEvaluator creates a new rule evaluator. A concurrency of zero or
// less evaluates every rule at once.
func NewRuleEvaluator(extractor *Extractor, cases repositories.CaseRepository, events providers.EventBus, concurrency int, model string, metrics *observability.Metrics) *RuleEvaluator {
	return &RuleEvaluator{
		extractor:   extractor,
		cases:       cases,
		events:      events,
		concurrency: concurrency,
		model:       model,
		metrics:     metrics,
	}
}

// EvaluateAll evaluates every rule check and waits for all of them. Checks
// without a title or description are skipped. Outcomes are returned in the
// order of checks.
func (e *RuleEvaluator) EvaluateAll(ctx context.Context, caseID, documentText string, checks []*entities.RuleCheck) []RuleOutcome {
	ctx, span := observability.StartSpan(ctx, "rules.EvaluateAll")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("case.id", caseID),
		attribute.Int("rules.count", len(checks)),
	)

	logger := observability.LoggerFromContext(ctx)
	outcomes := make([]RuleOutcome, len(checks))

	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}

	for i, check := range checks {
		if check == nil || check.RuleTitle == "" || check.RuleDescription == "" {
			title := ""
			if check != nil {
				title = check.RuleTitle
			}
			logger.Warn().Str("rule_title", title).Msg("Missing rule title or description, skipping rule check")
			outcomes[i] = RuleOutcome{RuleTitle: title, Skipped: true}
			observability.RecordRuleCheck(ctx, e.metrics, "skipped", false)
			continue
		}

		g.Go(func() error {
			outcomes[i] = e.evaluate(ctx, caseID, documentText, check)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

func (e *RuleEvaluator) evaluate(ctx context.Context, caseID, documentText string, check *entities.RuleCheck) (outcome RuleOutcome) {
	ctx, span := observability.StartSpan(ctx, "rules.Evaluate")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("rule.title", check.RuleTitle))

	logger := observability.LoggerFromContext(ctx).With().Str("rule_title", check.RuleTitle).Logger()
	outcome.RuleTitle = check.RuleTitle

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Rule evaluation panicked")
			outcome = RuleOutcome{RuleTitle: check.RuleTitle, Error: "rule evaluation panicked"}
			observability.RecordRuleCheck(ctx, e.metrics, "error", false)
		}
	}()

	evaluation, err := runExtraction[entities.RuleEvaluation](ctx, e.extractor, ruleEvaluationSpec(e.model),
		ruleEvaluationInput(check.RuleTitle, check.RuleDescription, documentText))
	if err != nil {
		observability.RecordError(span, err)
		logger.Error().Err(err).Msg("Failed to evaluate rule")
		outcome.Error = err.Error()
		observability.RecordRuleCheck(ctx, e.metrics, "error", false)
		return outcome
	}
	outcome.Status = evaluation.Status

	if err := e.cases.UpdateRuleCheck(ctx, caseID, check.RuleTitle, evaluation); err != nil {
		observability.RecordError(span, err)
		logger.Error().Err(err).Str("status", string(evaluation.Status)).Msg("Failed to update rule check")
		outcome.Error = err.Error()
		observability.RecordRuleCheck(ctx, e.metrics, string(evaluation.Status), false)
		return outcome
	}

	outcome.Updated = true
	observability.RecordRuleCheck(ctx, e.metrics, string(evaluation.Status), true)
	logger.Info().Str("status", string(evaluation.Status)).Msg("Rule check evaluated")

	publishCaseEvent(ctx, e.events, caseID, entities.CaseEventTypeRuleCheckUpdated, map[string]interface{}{
		"rule_title": check.RuleTitle,
		"status":     evaluation.Status,
	})
	return outcome
}
