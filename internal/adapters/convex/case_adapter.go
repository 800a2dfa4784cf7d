package convex

import (
	"context"
	"fmt"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// CaseAdapter implements CaseRepository over Convex
type CaseAdapter struct {
	client caller
}

// GetCaseWithDocuments retrieves a case with its documents and classification.
// Convex returns null for an unknown case.
func (a *CaseAdapter) GetCaseWithDocuments(ctx context.Context, caseID string) (*entities.Case, error) {
	var doc *caseDoc
	if err := a.client.Query(ctx, fnGetCaseWithDocuments, args{"caseId": caseID}, &doc); err != nil {
		return nil, storeError(fnGetCaseWithDocuments, err, fmt.Sprintf("case %s not found", caseID))
	}
	if doc == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("case %s not found", caseID))
	}
	return doc.entity(), nil
}

// GetRuleChecks retrieves the rule checks of a case
func (a *CaseAdapter) GetRuleChecks(ctx context.Context, caseID string) ([]*entities.RuleCheck, error) {
	var docs []ruleCheckDoc
	if err := a.client.Query(ctx, fnGetCaseRuleChecks, args{"caseId": caseID}, &docs); err != nil {
		return nil, storeError(fnGetCaseRuleChecks, err, fmt.Sprintf("case %s not found", caseID))
	}
	out := make([]*entities.RuleCheck, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.entity())
	}
	return out, nil
}

// UpdateCase applies the non-empty fields of update
func (a *CaseAdapter) UpdateCase(ctx context.Context, caseID string, update entities.CaseUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	updates := args{}
	if update.Status != "" {
		updates["status"] = update.Status
	}
	if update.Provider != "" {
		updates["provider"] = update.Provider
	}
	if update.PatientID != "" {
		updates["patientId"] = update.PatientID
	}
	if err := a.client.Mutation(ctx, fnUpdateCase, args{"caseId": caseID, "updates": updates}, nil); err != nil {
		return storeError(fnUpdateCase, err, fmt.Sprintf("case %s not found", caseID))
	}
	return nil
}

// ClassifyCase records the classification. The Convex function creates the
// pending rule checks for the procedure's rules.
func (a *CaseAdapter) ClassifyCase(ctx context.Context, classification *entities.CaseClassification) error {
	err := a.client.Mutation(ctx, fnClassifyCase, args{
		"caseId":          classification.CaseID,
		"specialtyId":     classification.SpecialtyID,
		"treatmentTypeId": classification.TreatmentTypeID,
		"procedureId":     classification.ProcedureID,
		"classifiedBy":    classification.ClassifiedBy,
	}, nil)
	if err != nil {
		return storeError(fnClassifyCase, err, fmt.Sprintf("case %s not found", classification.CaseID))
	}
	return nil
}

// UpdateRuleCheck writes an evaluation to the rule check with the given title
func (a *CaseAdapter) UpdateRuleCheck(ctx context.Context, caseID, ruleTitle string, evaluation *entities.RuleEvaluation) error {
	info := evaluation.RequiredAdditionalInfo
	if info == nil {
		info = []string{}
	}
	err := a.client.Mutation(ctx, fnUpdateRuleCheck, args{
		"caseId":                 caseID,
		"ruleTitle":              ruleTitle,
		"status":                 string(evaluation.Status),
		"reasoning":              evaluation.Reasoning,
		"requiredAdditionalInfo": info,
	}, nil)
	if err != nil {
		return storeError(fnUpdateRuleCheck, err, fmt.Sprintf("rule check %q not found on case %s", ruleTitle, caseID))
	}
	return nil
}
