package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// CaseAdapter implements CaseRepository
type CaseAdapter struct {
	db *sql.DB
	qb *goqu.Database
}

// NewCaseAdapter creates a new case adapter
func NewCaseAdapter(db *sql.DB, dialect string) repositories.CaseRepository {
	return &CaseAdapter{
		db: db,
		qb: goqu.New(dialect, db),
	}
}

func caseNotFound(caseID string) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("case %s not found", caseID))
}

// GetCaseWithDocuments retrieves a case with its documents, oldest first,
// and its classification if any
func (a *CaseAdapter) GetCaseWithDocuments(ctx context.Context, caseID string) (*entities.Case, error) {
	query, args, err := a.qb.From("cases").
		Select("id", "referral_source", "status", "provider", "patient_id", "created_at", "updated_at").
		Where(goqu.Ex{"id": caseID}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	c := &entities.Case{}
	var patientID sql.NullString
	err = a.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.ReferralSource, &c.Status, &c.Provider, &patientID, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseNotFound(caseID)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("failed to get case", err)
	}
	c.PatientID = patientID.String

	if c.Documents, err = a.documents(ctx, caseID); err != nil {
		return nil, err
	}
	if c.Classification, err = a.classification(ctx, caseID); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *CaseAdapter) documents(ctx context.Context, caseID string) ([]entities.CaseDocument, error) {
	query, args, err := a.qb.From("case_documents").
		Select("id", "case_id", "file_name", "file_url", "file_type").
		Where(goqu.Ex{"case_id": caseID}).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to get case documents", err)
	}
	defer rows.Close()

	docs := []entities.CaseDocument{}
	for rows.Next() {
		var d entities.CaseDocument
		if err := rows.Scan(&d.ID, &d.CaseID, &d.FileName, &d.FileURL, &d.FileType); err != nil {
			return nil, apperrors.NewStoreError("failed to scan case document", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("failed to get case documents", err)
	}
	return docs, nil
}

func (a *CaseAdapter) classification(ctx context.Context, caseID string) (*entities.CaseClassification, error) {
	query, args, err := a.qb.From("case_classifications").
		Select("case_id", "specialty_id", "treatment_type_id", "procedure_id", "classified_by", "classified_at").
		Where(goqu.Ex{"case_id": caseID}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	cc := &entities.CaseClassification{}
	err = a.db.QueryRowContext(ctx, query, args...).Scan(
		&cc.CaseID, &cc.SpecialtyID, &cc.TreatmentTypeID, &cc.ProcedureID, &cc.ClassifiedBy, &cc.ClassifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("failed to get case classification", err)
	}
	return cc, nil
}

// GetRuleChecks retrieves the rule checks of a case in creation order
func (a *CaseAdapter) GetRuleChecks(ctx context.Context, caseID string) ([]*entities.RuleCheck, error) {
	query, args, err := a.qb.From("case_rule_checks").
		Select("id", "case_id", "rule_id", "rule_title", "rule_description", "status", "reasoning", "required_additional_info").
		Where(goqu.Ex{"case_id": caseID}).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to get rule checks", err)
	}
	defer rows.Close()

	checks := []*entities.RuleCheck{}
	for rows.Next() {
		check, err := scanRuleCheck(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("failed to scan rule check", err)
		}
		checks = append(checks, check)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("failed to get rule checks", err)
	}
	return checks, nil
}

func scanRuleCheck(s scanner) (*entities.RuleCheck, error) {
	check := &entities.RuleCheck{}
	var status string
	var info []byte
	if err := s.Scan(&check.ID, &check.CaseID, &check.RuleID, &check.RuleTitle, &check.RuleDescription,
		&status, &check.Reasoning, &info); err != nil {
		return nil, err
	}
	check.Status = entities.RuleStatus(status)
	if len(info) > 0 {
		if err := json.Unmarshal(info, &check.RequiredAdditionalInfo); err != nil {
			return nil, err
		}
	}
	return check, nil
}

// UpdateCase applies the non-empty fields of update
func (a *CaseAdapter) UpdateCase(ctx context.Context, caseID string, update entities.CaseUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	record := goqu.Record{"updated_at": time.Now().UTC()}
	if update.Status != "" {
		record["status"] = update.Status
	}
	if update.Provider != "" {
		record["provider"] = update.Provider
	}
	if update.PatientID != "" {
		record["patient_id"] = update.PatientID
	}

	query, args, err := a.qb.Update("cases").Set(record).Where(goqu.Ex{"id": caseID}).Prepared(true).ToSQL()
	if err != nil {
		return buildError(err)
	}

	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStoreError("failed to update case", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return caseNotFound(caseID)
	}
	return nil
}

// ClassifyCase replaces the classification of a case and adds a pending rule
// check for every rule of the procedure the case has not been checked
// against yet, in one transaction
func (a *CaseAdapter) ClassifyCase(ctx context.Context, classification *entities.CaseClassification) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	caseID := classification.CaseID

	query, args, err := a.qb.Update("cases").
		Set(goqu.Record{"updated_at": now}).
		Where(goqu.Ex{"id": caseID}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return buildError(err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStoreError("failed to touch case", err)
	}
	if affected, rerr := res.RowsAffected(); rerr == nil && affected == 0 {
		return caseNotFound(caseID)
	}

	query, args, err = a.qb.Delete("case_classifications").Where(goqu.Ex{"case_id": caseID}).Prepared(true).ToSQL()
	if err != nil {
		return buildError(err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStoreError("failed to clear case classification", err)
	}

	classifiedAt := classification.ClassifiedAt
	if classifiedAt.IsZero() {
		classifiedAt = now
	}
	query, args, err = a.qb.Insert("case_classifications").Rows(goqu.Record{
		"case_id":           caseID,
		"specialty_id":      classification.SpecialtyID,
		"treatment_type_id": classification.TreatmentTypeID,
		"procedure_id":      classification.ProcedureID,
		"classified_by":     classification.ClassifiedBy,
		"classified_at":     classifiedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return buildError(err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStoreError("failed to insert case classification", err)
	}

	rules, err := listRulesForProcedure(ctx, tx, a.qb, classification.ProcedureID)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		_, err = insertIgnore(ctx, tx, a.qb.Insert("case_rule_checks").Rows(goqu.Record{
			"id":                       uuid.New().String(),
			"case_id":                  caseID,
			"rule_id":                  rule.ID,
			"rule_title":               rule.Title,
			"rule_description":         rule.Description,
			"status":                   string(entities.RuleStatusPending),
			"reasoning":                "",
			"required_additional_info": "[]",
			"created_at":               now,
			"updated_at":               now,
		}))
		if err != nil {
			return apperrors.NewStoreError("failed to create rule check", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewStoreError("failed to commit case classification", err)
	}
	return nil
}

// UpdateRuleCheck writes an evaluation to the case's rule check with the
// given title
func (a *CaseAdapter) UpdateRuleCheck(ctx context.Context, caseID, ruleTitle string, evaluation *entities.RuleEvaluation) error {
	info := evaluation.RequiredAdditionalInfo
	if info == nil {
		info = []string{}
	}
	encoded, err := json.Marshal(info)
	if err != nil {
		return apperrors.NewInternalError("failed to encode required additional info", err)
	}

	query, args, err := a.qb.Update("case_rule_checks").Set(goqu.Record{
		"status":                   string(evaluation.Status),
		"reasoning":                evaluation.Reasoning,
		"required_additional_info": string(encoded),
		"updated_at":               time.Now().UTC(),
	}).Where(goqu.Ex{"case_id": caseID, "rule_title": ruleTitle}).Prepared(true).ToSQL()
	if err != nil {
		return buildError(err)
	}

	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStoreError("failed to update rule check", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("rule check %q not found on case %s", ruleTitle, caseID))
	}
	return nil
}
