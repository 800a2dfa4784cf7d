package entities

import (
	"errors"
	"fmt"
	"strings"
)

// ProcedureSummary is the requested procedure as extracted from a referral
type ProcedureSummary struct {
	ProcedureName   string `json:"procedure_name"`
	Description     string `json:"description"`
	RelevantDetails string `json:"relevant_details"`
}

// ClassificationDecision names the specialty, treatment type and procedure a
// referral belongs to. Names may refer to existing taxonomy entries or to
// entries that do not exist yet.
type ClassificationDecision struct {
	Specialty                string   `json:"specialty"`
	SpecialtyDescription     string   `json:"specialty_description"`
	TreatmentType            string   `json:"treatment_type"`
	TreatmentTypeDescription string   `json:"treatment_type_description"`
	Procedure                string   `json:"procedure"`
	ProcedureDescription     string   `json:"procedure_description"`
	Evidence                 []string `json:"evidence"`
	Notes                    string   `json:"notes"`
}

// ProviderInfo is the output of the provider name extraction
type ProviderInfo struct {
	Name string `json:"name"`
}

// DocumentStructure is the outline of a referral document
type DocumentStructure struct {
	Structure string `json:"structure"`
}

// Validate trims the summary and requires a procedure name
func (s *ProcedureSummary) Validate() error {
	s.ProcedureName = strings.TrimSpace(s.ProcedureName)
	s.Description = strings.TrimSpace(s.Description)
	s.RelevantDetails = strings.TrimSpace(s.RelevantDetails)
	if s.ProcedureName == "" {
		return errors.New("procedure summary has no procedure name")
	}
	return nil
}

// Validate trims the decision and requires a name at every level
func (d *ClassificationDecision) Validate() error {
	d.Specialty = strings.TrimSpace(d.Specialty)
	d.TreatmentType = strings.TrimSpace(d.TreatmentType)
	d.Procedure = strings.TrimSpace(d.Procedure)

	var missing []string
	if d.Specialty == "" {
		missing = append(missing, "specialty")
	}
	if d.TreatmentType == "" {
		missing = append(missing, "treatment_type")
	}
	if d.Procedure == "" {
		missing = append(missing, "procedure")
	}
	if len(missing) > 0 {
		return fmt.Errorf("classification decision missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Validate trims the provider name. An empty name is valid.
func (p *ProviderInfo) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	return nil
}
