package services

import (
	"fmt"
	"os"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FallbackStrategy supplies rules for a new procedure when the rule
// generation extraction fails. Returning nil means no fallback.
type FallbackStrategy func(req RuleGenerationRequest) *entities.RuleGenerationResult

// DefaultFallbackRules are the generic rules used when generation fails
func DefaultFallbackRules() []entities.GeneratedRule {
	return []entities.GeneratedRule{
		{
			Title:       "Medical necessity documented",
			Description: "Clinical indication and medical necessity for the procedure must be clearly documented in the referral.",
		},
		{
			Title:       "Patient consent obtained",
			Description: "Patient must have provided informed consent for the procedure after understanding risks and benefits.",
		},
		{
			Title:       "Insurance authorization verified",
			Description: "Insurance pre-authorization must be obtained if required by the patient's insurance plan.",
		},
	}
}

// StaticFallback returns a strategy that always yields the given rules
func StaticFallback(rules []entities.GeneratedRule) FallbackStrategy {
	return func(req RuleGenerationRequest) *entities.RuleGenerationResult {
		out := make([]entities.GeneratedRule, len(rules))
		copy(out, rules)
		return &entities.RuleGenerationResult{
			Rules:     out,
			Reasoning: fmt.Sprintf("Error occurred during rule generation for %s. Fallback basic rules provided.", req.ProcedureName),
		}
	}
}

// NoFallback disables fallback rules
func NoFallback(RuleGenerationRequest) *entities.RuleGenerationResult {
	return nil
}

type fallbackFile struct {
	Rules []entities.GeneratedRule `yaml:"rules"`
}

// LoadFallbackRules reads fallback rules from a YAML file of the form
//
//	rules:
//	  - title: ...
//	    description: ...
func LoadFallbackRules(path string) ([]entities.GeneratedRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback rules: %w", err)
	}

	var file fallbackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fallback rules %s: %w", path, err)
	}

	for i, rule := range file.Rules {
		if rule.Title == "" || rule.Description == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("fallback rule %d in %s needs a title and description", i+1, path))
		}
	}
	if len(file.Rules) == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("no fallback rules in %s", path))
	}
	return file.Rules, nil
}

// NewFallbackStrategy picks the fallback strategy for the configuration
func NewFallbackStrategy(enabled bool, path string) (FallbackStrategy, error) {
	if !enabled {
		return NoFallback, nil
	}
	if path == "" {
		return StaticFallback(DefaultFallbackRules()), nil
	}
	rules, err := LoadFallbackRules(path)
	if err != nil {
		return nil, err
	}
	return StaticFallback(rules), nil
}
