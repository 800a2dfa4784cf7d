package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// RuleAdapter implements RuleRepository
type RuleAdapter struct {
	db *sql.DB
	qb *goqu.Database
}

// NewRuleAdapter creates a new rule adapter
func NewRuleAdapter(db *sql.DB, dialect string) repositories.RuleRepository {
	return &RuleAdapter{
		db: db,
		qb: goqu.New(dialect, db),
	}
}

// CreateRule creates a rule
func (a *RuleAdapter) CreateRule(ctx context.Context, title, description, createdBy string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	query, args, err := a.qb.Insert("rules").Rows(goqu.Record{
		"id":          id,
		"title":       title,
		"description": description,
		"created_by":  createdBy,
		"created_at":  now,
		"updated_at":  now,
	}).Prepared(true).ToSQL()
	if err != nil {
		return "", buildError(err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return "", apperrors.NewStoreError("failed to create rule", err)
	}
	return id, nil
}

// AddRuleToProcedure associates a rule with a procedure. Adding an existing
// association is a no-op.
func (a *RuleAdapter) AddRuleToProcedure(ctx context.Context, procedureID, ruleID string) error {
	_, err := insertIgnore(ctx, a.db, a.qb.Insert("procedure_rules").Rows(goqu.Record{
		"procedure_id": procedureID,
		"rule_id":      ruleID,
		"created_at":   time.Now().UTC(),
	}))
	if err != nil {
		return apperrors.NewStoreError("failed to add rule to procedure", err)
	}
	return nil
}

// ListRulesForProcedure retrieves the rules associated with a procedure
func (a *RuleAdapter) ListRulesForProcedure(ctx context.Context, procedureID string) ([]*entities.Rule, error) {
	return listRulesForProcedure(ctx, a.db, a.qb, procedureID)
}

func listRulesForProcedure(ctx context.Context, db execer, qb *goqu.Database, procedureID string) ([]*entities.Rule, error) {
	query, args, err := qb.From(goqu.T("rules").As("r")).
		Join(goqu.T("procedure_rules").As("pr"), goqu.On(goqu.I("pr.rule_id").Eq(goqu.I("r.id")))).
		Select("r.id", "r.title", "r.description", "r.created_by", "r.created_at", "r.updated_at").
		Where(goqu.I("pr.procedure_id").Eq(procedureID)).
		Order(goqu.I("pr.created_at").Asc(), goqu.I("r.id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, buildError(err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to list rules for procedure", err)
	}
	defer rows.Close()

	rules := []*entities.Rule{}
	for rows.Next() {
		r := &entities.Rule{}
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, apperrors.NewStoreError("failed to scan rule", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("failed to list rules for procedure", err)
	}
	return rules, nil
}
