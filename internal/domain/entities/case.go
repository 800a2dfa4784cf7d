package entities

import "time"

// Case statuses
const (
	CaseStatusNew         = "new"
	CaseStatusProcessing  = "processing"
	CaseStatusPendingInfo = "pending-info"
	CaseStatusEligible    = "eligible"
	CaseStatusScheduled   = "scheduled"
	CaseStatusCompleted   = "completed"
)

// Case is a referral case and the orchestrator's principal side-effect target
type Case struct {
	ID             string              `json:"id" db:"id"`
	ReferralSource string              `json:"referral_source" db:"referral_source"`
	Status         string              `json:"status" db:"status"`
	Provider       string              `json:"provider,omitempty" db:"provider"`
	PatientID      string              `json:"patient_id,omitempty" db:"patient_id"`
	Documents      []CaseDocument      `json:"documents"`
	Classification *CaseClassification `json:"classification,omitempty"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

// PrimaryDocument returns the document the intake reads, or nil
func (c *Case) PrimaryDocument() *CaseDocument {
	if c == nil || len(c.Documents) == 0 {
		return nil
	}
	return &c.Documents[0]
}

// CaseDocument is an uploaded referral document attached to a case
type CaseDocument struct {
	ID       string `json:"id" db:"id"`
	CaseID   string `json:"case_id" db:"case_id"`
	FileName string `json:"file_name" db:"file_name"`
	FileURL  string `json:"file_url" db:"file_url"`
	FileType string `json:"file_type" db:"file_type"`
}

// CaseClassification links a case to its taxonomy placement
type CaseClassification struct {
	CaseID          string    `json:"case_id" db:"case_id"`
	SpecialtyID     string    `json:"specialty_id" db:"specialty_id"`
	TreatmentTypeID string    `json:"treatment_type_id" db:"treatment_type_id"`
	ProcedureID     string    `json:"procedure_id" db:"procedure_id"`
	ClassifiedBy    string    `json:"classified_by" db:"classified_by"`
	ClassifiedAt    time.Time `json:"classified_at" db:"classified_at"`
}

// CaseUpdate carries the mutable case fields. Empty fields are left untouched.
type CaseUpdate struct {
	Status    string `json:"status,omitempty"`
	Provider  string `json:"provider,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u CaseUpdate) IsEmpty() bool {
	return u.Status == "" && u.Provider == "" && u.PatientID == ""
}

// RuleCheck is the per-case record of one rule's evaluation. The rule title
// and description are copied from the rule when the check is created.
type RuleCheck struct {
	ID                     string     `json:"id" db:"id"`
	CaseID                 string     `json:"case_id" db:"case_id"`
	RuleID                 string     `json:"rule_id,omitempty" db:"rule_id"`
	RuleTitle              string     `json:"rule_title" db:"rule_title"`
	RuleDescription        string     `json:"rule_description" db:"rule_description"`
	Status                 RuleStatus `json:"status" db:"status"`
	Reasoning              string     `json:"reasoning,omitempty" db:"reasoning"`
	RequiredAdditionalInfo []string   `json:"required_additional_info,omitempty" db:"required_additional_info"`
}
