package entities

import (
	"strings"
	"time"
)

// PatientDataSourceExtraction marks data items read from a referral document
const PatientDataSourceExtraction = "document_extraction"

// Patient is the person a referral case is about
type Patient struct {
	ID             string            `json:"id" db:"id"`
	Name           string            `json:"name,omitempty" db:"name"`
	Email          string            `json:"email,omitempty" db:"email"`
	Phone          string            `json:"phone,omitempty" db:"phone"`
	AdditionalData []PatientDataItem `json:"additional_data,omitempty" db:"additional_data"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// PatientDataItem is a free-form patient attribute captured from a document
type PatientDataItem struct {
	Name        string   `json:"name"`
	Value       string   `json:"value"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Source      string   `json:"source,omitempty"`
	ExtractedAt string   `json:"extracted_at,omitempty"`
}

// PatientInfo is the output of the patient extraction. Fields absent from the
// document are empty.
type PatientInfo struct {
	Name                string `json:"name"`
	DateOfBirth         string `json:"date_of_birth"`
	Gender              string `json:"gender"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	MedicalRecordNumber string `json:"medical_record_number"`
	InsuranceProvider   string `json:"insurance_provider"`
	InsuranceMemberID   string `json:"insurance_member_id"`
	Address             string `json:"address"`
	City                string `json:"city"`
	State               string `json:"state"`
	ZipCode             string `json:"zip_code"`
}

// Validate trims every extracted field
func (p *PatientInfo) Validate() error {
	for _, f := range []*string{
		&p.Name, &p.DateOfBirth, &p.Gender, &p.Email, &p.Phone,
		&p.MedicalRecordNumber, &p.InsuranceProvider, &p.InsuranceMemberID,
		&p.Address, &p.City, &p.State, &p.ZipCode,
	} {
		*f = strings.TrimSpace(*f)
	}
	return nil
}

// AdditionalData folds the extracted attributes that have no column of their
// own into patient data items.
func (p *PatientInfo) AdditionalData(extractedAt time.Time) []PatientDataItem {
	fields := []struct {
		name  string
		value string
	}{
		{"Date of Birth", p.DateOfBirth},
		{"Gender", p.Gender},
		{"Medical Record Number", p.MedicalRecordNumber},
		{"Insurance Provider", p.InsuranceProvider},
		{"Insurance Member ID", p.InsuranceMemberID},
		{"Address", p.Address},
		{"City", p.City},
		{"State", p.State},
		{"Zip Code", p.ZipCode},
	}

	stamp := extractedAt.UTC().Format(time.RFC3339)
	items := make([]PatientDataItem, 0, len(fields))
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		items = append(items, PatientDataItem{
			Name:        f.name,
			Value:       f.value,
			Source:      PatientDataSourceExtraction,
			ExtractedAt: stamp,
		})
	}
	return items
}

// IsEmpty reports whether nothing identifying was extracted
func (p *PatientInfo) IsEmpty() bool {
	return p.Name == "" && p.Email == "" && p.Phone == "" && p.MedicalRecordNumber == ""
}
