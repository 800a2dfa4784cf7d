package services

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// RuleGenerationRequest describes a newly created procedure and its place in
// the taxonomy.
type RuleGenerationRequest struct {
	ProcedureID              string
	ProcedureName            string
	ProcedureDescription     string
	SpecialtyName            string
	TreatmentTypeName        string
	SpecialtyDescription     string
	TreatmentTypeDescription string
}

// RuleGenerationReport summarizes one rule generation run
type RuleGenerationReport struct {
	Generated    int
	Created      []string
	Associated   int
	UsedFallback bool
}

// Succeeded reports whether at least one rule was generated and created
func (r RuleGenerationReport) Succeeded() bool {
	return r.Generated > 0 && len(r.Created) > 0
}

// RuleGenerator creates and associates rules for new procedures
type RuleGenerator struct {
	extractor *Extractor
	rules     repositories.RuleRepository
	fallback  FallbackStrategy
	model     string
}

// NewRuleGenerator creates a new rule generator. A nil fallback disables it.
func NewRuleGenerator(extractor *Extractor, rules repositories.RuleRepository, fallback FallbackStrategy, model string) *RuleGenerator {
	if fallback == nil {
		fallback = NoFallback
	}
	return &RuleGenerator{
		extractor: extractor,
		rules:     rules,
		fallback:  fallback,
		model:     model,
	}
}

// GenerateRules implements RuleGenerationTrigger
func (g *RuleGenerator) GenerateRules(ctx context.Context, req RuleGenerationRequest) bool {
	return g.Generate(ctx, req).Succeeded()
}

// Generate runs the rule generation extraction, falling back to the
// configured strategy when it fails, then persists each rule and associates
// it with the procedure. Individual store failures are logged and skipped.
func (g *RuleGenerator) Generate(ctx context.Context, req RuleGenerationRequest) RuleGenerationReport {
	ctx, span := observability.StartSpan(ctx, "rules.Generate")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("taxonomy.procedure_id", req.ProcedureID),
		attribute.String("taxonomy.procedure", req.ProcedureName),
	)

	logger := observability.LoggerFromContext(ctx).With().
		Str("procedure", req.ProcedureName).
		Str("procedure_id", req.ProcedureID).
		Logger()

	var report RuleGenerationReport

	result, err := runExtraction[entities.RuleGenerationResult](ctx, g.extractor, ruleGenerationSpec(g.model), ruleGenerationInput(req))
	if err != nil {
		observability.RecordError(span, err)
		logger.Error().Err(err).Msg("Failed to generate rules for procedure")
		result = g.fallback(req)
		if result == nil {
			return report
		}
		report.UsedFallback = true
	}

	report.Generated = len(result.Rules)
	if report.Generated == 0 {
		logger.Warn().Msg("No rules generated for procedure")
		return report
	}

	for _, rule := range result.Rules {
		id, err := g.rules.CreateRule(ctx, rule.Title, rule.Description, entities.CreatedByAI)
		if err != nil {
			logger.Error().Err(err).Str("rule_title", rule.Title).Msg("Failed to create rule")
			continue
		}
		report.Created = append(report.Created, id)
	}

	if len(report.Created) == 0 {
		logger.Error().Msg("Failed to create any rules for procedure")
		return report
	}

	for _, ruleID := range report.Created {
		if err := g.rules.AddRuleToProcedure(ctx, req.ProcedureID, ruleID); err != nil {
			logger.Error().Err(err).Str("rule_id", ruleID).Msg("Failed to associate rule with procedure")
			continue
		}
		report.Associated++
	}

	logger.Info().
		Int("generated", report.Generated).
		Int("created", len(report.Created)).
		Int("associated", report.Associated).
		Bool("fallback", report.UsedFallback).
		Str("reasoning", result.Reasoning).
		Msg("Created rules for procedure")

	return report
}
