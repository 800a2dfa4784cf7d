// Package convex implements the repositories over Convex functions.
package convex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/referralintake/internal/domain/repositories"
	convexclient "github.com/zatekoja/referralintake/internal/infrastructure/clients/convex"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// Function names exposed by the Convex deployment
const (
	fnGetSpecialties      = "specialties:getSpecialties"
	fnGetTreatmentTypes   = "treatments:getTreatmentTypes"
	fnGetProcedures       = "procedures:getProcedures"
	fnCreateSpecialty     = "specialties:createSpecialty"
	fnCreateTreatmentType = "treatments:createTreatmentType"
	fnCreateProcedure     = "procedures:createProcedure"

	fnCreateRule          = "rules:createRule"
	fnAddRuleToProcedure  = "rules:addRuleToProcedure"
	fnGetRulesByProcedure = "rules:getRulesByProcedure"

	fnGetCaseWithDocuments = "cases:getCaseWithDocuments"
	fnGetCaseRuleChecks    = "cases:getCaseRuleChecks"
	fnUpdateCase           = "cases:updateCase"
	fnUpdateRuleCheck      = "cases:updateRuleCheck"
	fnClassifyCase         = "case_classifications:classifyCaseWithProcedure"

	fnFindPatientByEmail = "patients:findPatientByEmail"
	fnFindPatientByPhone = "patients:findPatientByPhone"
	fnCreatePatient      = "patients:createPatient"
)

// caller is satisfied by *convexclient.Client
type caller interface {
	Query(ctx context.Context, path string, args interface{}, out interface{}) error
	Mutation(ctx context.Context, path string, args interface{}, out interface{}) error
}

// NewStore builds every repository over one Convex client
func NewStore(client *convexclient.Client) *repositories.Store {
	return newStore(client)
}

func newStore(c caller) *repositories.Store {
	return &repositories.Store{
		Taxonomy: &TaxonomyAdapter{client: c},
		Rules:    &RuleAdapter{client: c},
		Cases:    &CaseAdapter{client: c},
		Patients: &PatientAdapter{client: c},
	}
}

type args map[string]interface{}

// storeError wraps a failed function call. Convex reports a missing document
// as a function error, which is mapped to NOT_FOUND when notFound is set.
func storeError(fn string, err error, notFound string) error {
	var fnErr *convexclient.FunctionError
	if notFound != "" && errors.As(err, &fnErr) && isMissingDocument(fnErr.Message) {
		return apperrors.NewNotFoundError(notFound)
	}
	return apperrors.NewStoreError(fmt.Sprintf("convex %s failed", fn), err)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
