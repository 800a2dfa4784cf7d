package repositories

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
)

// RuleRepository defines the interface for rule data operations
type RuleRepository interface {
	// CreateRule creates a rule and returns its ID
	CreateRule(ctx context.Context, title, description, createdBy string) (string, error)

	// AddRuleToProcedure associates an existing rule with a procedure
	AddRuleToProcedure(ctx context.Context, procedureID, ruleID string) error

	// ListRulesForProcedure retrieves the rules associated with a procedure
	ListRulesForProcedure(ctx context.Context, procedureID string) ([]*entities.Rule, error)
}
