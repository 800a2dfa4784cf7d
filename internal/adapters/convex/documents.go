package convex

import (
	"strings"

	"github.com/zatekoja/referralintake/internal/domain/entities"
)

// Convex documents carry their ID in _id and use camelCase fields

type specialtyDoc struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func (d specialtyDoc) entity() *entities.Specialty {
	return &entities.Specialty{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   parseTime(d.CreatedAt),
		UpdatedAt:   parseTime(d.UpdatedAt),
	}
}

type treatmentTypeDoc struct {
	ID          string `json:"_id"`
	SpecialtyID string `json:"specialtyId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func (d treatmentTypeDoc) entity() *entities.TreatmentType {
	return &entities.TreatmentType{
		ID:          d.ID,
		SpecialtyID: d.SpecialtyID,
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   parseTime(d.CreatedAt),
		UpdatedAt:   parseTime(d.UpdatedAt),
	}
}

type procedureDoc struct {
	ID              string `json:"_id"`
	TreatmentTypeID string `json:"treatmentTypeId"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

func (d procedureDoc) entity() *entities.Procedure {
	return &entities.Procedure{
		ID:              d.ID,
		TreatmentTypeID: d.TreatmentTypeID,
		Name:            d.Name,
		Description:     d.Description,
		CreatedAt:       parseTime(d.CreatedAt),
		UpdatedAt:       parseTime(d.UpdatedAt),
	}
}

type ruleDoc struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func (d ruleDoc) entity() *entities.Rule {
	return &entities.Rule{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   parseTime(d.CreatedAt),
		UpdatedAt:   parseTime(d.UpdatedAt),
	}
}

type documentDoc struct {
	ID       string `json:"_id"`
	CaseID   string `json:"caseId"`
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"`
}

type classificationDoc struct {
	CaseID          string `json:"caseId"`
	SpecialtyID     string `json:"specialtyId"`
	TreatmentTypeID string `json:"treatmentTypeId"`
	ProcedureID     string `json:"procedureId"`
	ClassifiedBy    string `json:"classifiedBy"`
	ClassifiedAt    string `json:"classifiedAt"`
}

type caseDoc struct {
	ID             string             `json:"_id"`
	ReferralSource string             `json:"referralSource"`
	Status         string             `json:"status"`
	Provider       string             `json:"provider"`
	PatientID      string             `json:"patientId"`
	Documents      []documentDoc      `json:"documents"`
	Classification *classificationDoc `json:"classification"`
	CreatedAt      string             `json:"createdAt"`
	UpdatedAt      string             `json:"updatedAt"`
}

func (d caseDoc) entity() *entities.Case {
	c := &entities.Case{
		ID:             d.ID,
		ReferralSource: d.ReferralSource,
		Status:         d.Status,
		Provider:       d.Provider,
		PatientID:      d.PatientID,
		Documents:      make([]entities.CaseDocument, 0, len(d.Documents)),
		CreatedAt:      parseTime(d.CreatedAt),
		UpdatedAt:      parseTime(d.UpdatedAt),
	}
	for _, doc := range d.Documents {
		c.Documents = append(c.Documents, entities.CaseDocument{
			ID:       doc.ID,
			CaseID:   doc.CaseID,
			FileName: doc.FileName,
			FileURL:  doc.FileURL,
			FileType: doc.FileType,
		})
	}
	if cc := d.Classification; cc != nil {
		c.Classification = &entities.CaseClassification{
			CaseID:          cc.CaseID,
			SpecialtyID:     cc.SpecialtyID,
			TreatmentTypeID: cc.TreatmentTypeID,
			ProcedureID:     cc.ProcedureID,
			ClassifiedBy:    cc.ClassifiedBy,
			ClassifiedAt:    parseTime(cc.ClassifiedAt),
		}
	}
	return c
}

type ruleCheckDoc struct {
	ID                     string   `json:"_id"`
	CaseID                 string   `json:"caseId"`
	OriginalRuleID         string   `json:"originalRuleId"`
	RuleTitle              string   `json:"ruleTitle"`
	RuleDescription        string   `json:"ruleDescription"`
	Status                 string   `json:"status"`
	Reasoning              string   `json:"reasoning"`
	RequiredAdditionalInfo []string `json:"requiredAdditionalInfo"`
}

func (d ruleCheckDoc) entity() *entities.RuleCheck {
	info := d.RequiredAdditionalInfo
	if info == nil {
		info = []string{}
	}
	return &entities.RuleCheck{
		ID:                     d.ID,
		CaseID:                 d.CaseID,
		RuleID:                 d.OriginalRuleID,
		RuleTitle:              d.RuleTitle,
		RuleDescription:        d.RuleDescription,
		Status:                 entities.RuleStatus(d.Status),
		Reasoning:              d.Reasoning,
		RequiredAdditionalInfo: info,
	}
}

type patientDataItemDoc struct {
	Name        string   `json:"name"`
	Value       string   `json:"value"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Source      string   `json:"source,omitempty"`
	ExtractedAt string   `json:"extractedAt,omitempty"`
}

type patientDoc struct {
	ID             string               `json:"_id,omitempty"`
	Name           string               `json:"name,omitempty"`
	Email          string               `json:"email,omitempty"`
	Phone          string               `json:"phone,omitempty"`
	AdditionalData []patientDataItemDoc `json:"additionalData"`
	CreatedAt      string               `json:"createdAt,omitempty"`
	UpdatedAt      string               `json:"updatedAt,omitempty"`
}

func (d patientDoc) entity() *entities.Patient {
	p := &entities.Patient{
		ID:        d.ID,
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		CreatedAt: parseTime(d.CreatedAt),
		UpdatedAt: parseTime(d.UpdatedAt),
	}
	for _, item := range d.AdditionalData {
		p.AdditionalData = append(p.AdditionalData, entities.PatientDataItem(item))
	}
	return p
}

func patientArgs(p *entities.Patient) args {
	a := args{}
	if p.Name != "" {
		a["name"] = p.Name
	}
	if p.Email != "" {
		a["email"] = p.Email
	}
	if p.Phone != "" {
		a["phone"] = p.Phone
	}
	items := make([]patientDataItemDoc, 0, len(p.AdditionalData))
	for _, item := range p.AdditionalData {
		items = append(items, patientDataItemDoc(item))
	}
	a["additionalData"] = items
	return a
}

// isMissingDocument matches the messages Convex returns when a mutation
// targets a document ID that does not exist
func isMissingDocument(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "nonexistent document") || strings.Contains(lower, "not found")
}
