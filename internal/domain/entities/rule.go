package entities

import (
	"fmt"
	"strings"
	"time"
)

// Rule is an eligibility or compliance rule. Rules are shared between
// procedures through ProcedureRule associations.
type Rule struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	CreatedBy   string    `json:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProcedureRule associates a rule with a procedure
type ProcedureRule struct {
	ProcedureID string    `json:"procedure_id" db:"procedure_id"`
	RuleID      string    `json:"rule_id" db:"rule_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// RuleStatus is the outcome of evaluating a rule against a referral
type RuleStatus string

const (
	RuleStatusPending              RuleStatus = "pending"
	RuleStatusValid                RuleStatus = "valid"
	RuleStatusNeedsMoreInformation RuleStatus = "needs_more_information"
	RuleStatusDeny                 RuleStatus = "deny"
)

// IsEvaluated reports whether the status is one an evaluation may produce
func (s RuleStatus) IsEvaluated() bool {
	switch s {
	case RuleStatusValid, RuleStatusNeedsMoreInformation, RuleStatusDeny:
		return true
	}
	return false
}

// Rule creators
const (
	CreatedByAI     = "ai"
	CreatedBySystem = "system"
)

// GeneratedRule is a rule definition proposed for a new procedure
type GeneratedRule struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// RuleGenerationResult is the output of the rule generation extraction
type RuleGenerationResult struct {
	Rules     []GeneratedRule `json:"rules"`
	Reasoning string          `json:"reasoning"`
}

// RuleEvaluation is the output of evaluating one rule against a document
type RuleEvaluation struct {
	Status                 RuleStatus `json:"status"`
	Reasoning              string     `json:"reasoning"`
	RequiredAdditionalInfo []string   `json:"required_additional_info"`
}

// Validate drops blank rules and trims the rest
func (r *RuleGenerationResult) Validate() error {
	rules := r.Rules[:0]
	for _, rule := range r.Rules {
		rule.Title = strings.TrimSpace(rule.Title)
		rule.Description = strings.TrimSpace(rule.Description)
		if rule.Title == "" || rule.Description == "" {
			continue
		}
		rules = append(rules, rule)
	}
	r.Rules = rules
	return nil
}

// Validate requires an evaluated status
func (e *RuleEvaluation) Validate() error {
	e.Status = RuleStatus(strings.ToLower(strings.TrimSpace(string(e.Status))))
	if !e.Status.IsEvaluated() {
		return fmt.Errorf("invalid rule status %q", e.Status)
	}
	if e.RequiredAdditionalInfo == nil {
		e.RequiredAdditionalInfo = []string{}
	}
	return nil
}
