package repositories

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
)

// CaseRepository defines the interface for referral case data operations
type CaseRepository interface {
	// GetCaseWithDocuments retrieves a case with its documents and classification
	GetCaseWithDocuments(ctx context.Context, caseID string) (*entities.Case, error)

	// GetRuleChecks retrieves the rule checks of a case
	GetRuleChecks(ctx context.Context, caseID string) ([]*entities.RuleCheck, error)

	// UpdateCase applies the non-empty fields of update to a case
	UpdateCase(ctx context.Context, caseID string, update entities.CaseUpdate) error

	// ClassifyCase records the classification of a case and creates a pending
	// rule check for each rule associated with the procedure. Calling it again
	// replaces the classification and adds checks only for rules not yet
	// checked on the case.
	ClassifyCase(ctx context.Context, classification *entities.CaseClassification) error

	// UpdateRuleCheck writes an evaluation to the rule check identified by
	// case and rule title
	UpdateRuleCheck(ctx context.Context, caseID, ruleTitle string, evaluation *entities.RuleEvaluation) error
}
