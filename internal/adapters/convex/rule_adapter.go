package convex

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
)

// RuleAdapter implements RuleRepository over Convex
type RuleAdapter struct {
	client caller
}

// CreateRule creates a rule and returns its ID
func (a *RuleAdapter) CreateRule(ctx context.Context, title, description, createdBy string) (string, error) {
	var id string
	err := a.client.Mutation(ctx, fnCreateRule, args{
		"title":       title,
		"description": description,
		"createdBy":   createdBy,
	}, &id)
	if err != nil {
		return "", storeError(fnCreateRule, err, "")
	}
	return id, nil
}

// AddRuleToProcedure associates an existing rule with a procedure
func (a *RuleAdapter) AddRuleToProcedure(ctx context.Context, procedureID, ruleID string) error {
	err := a.client.Mutation(ctx, fnAddRuleToProcedure, args{"procedureId": procedureID, "ruleId": ruleID}, nil)
	if err != nil {
		return storeError(fnAddRuleToProcedure, err, "")
	}
	return nil
}

// ListRulesForProcedure retrieves the rules associated with a procedure
func (a *RuleAdapter) ListRulesForProcedure(ctx context.Context, procedureID string) ([]*entities.Rule, error) {
	var docs []ruleDoc
	if err := a.client.Query(ctx, fnGetRulesByProcedure, args{"procedureId": procedureID}, &docs); err != nil {
		return nil, storeError(fnGetRulesByProcedure, err, "")
	}
	out := make([]*entities.Rule, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.entity())
	}
	return out, nil
}
