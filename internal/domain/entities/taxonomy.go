package entities

import "time"

// Specialty is the root level of the referral taxonomy (e.g. Cardiology)
type Specialty struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TreatmentType is a child of exactly one Specialty (e.g. Consultation)
type TreatmentType struct {
	ID          string    `json:"id" db:"id"`
	SpecialtyID string    `json:"specialty_id" db:"specialty_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Procedure is a taxonomy leaf, child of exactly one TreatmentType
type Procedure struct {
	ID              string    `json:"id" db:"id"`
	TreatmentTypeID string    `json:"treatment_type_id" db:"treatment_type_id"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TaxonomyLevel names one of the three hierarchy levels
type TaxonomyLevel string

const (
	TaxonomyLevelSpecialty     TaxonomyLevel = "specialty"
	TaxonomyLevelTreatmentType TaxonomyLevel = "treatment_type"
	TaxonomyLevelProcedure     TaxonomyLevel = "procedure"
)
