package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/repositories"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// PatientService extracts patient details from referrals and links the case
// to a patient record
type PatientService struct {
	extractor *Extractor
	patients  repositories.PatientRepository
	cases     repositories.CaseRepository
	model     string
	now       func() time.Time
}

// NewPatientService creates a new patient service
func NewPatientService(extractor *Extractor, patients repositories.PatientRepository, cases repositories.CaseRepository, model string) *PatientService {
	return &PatientService{
		extractor: extractor,
		patients:  patients,
		cases:     cases,
		model:     model,
		now:       time.Now,
	}
}

// ExtractAndLink extracts the patient from the document text, finds or
// creates the patient, and sets it on the case. It returns the patient ID, or
// an empty ID when the document identifies nobody.
func (s *PatientService) ExtractAndLink(ctx context.Context, caseID, documentText string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "patients.ExtractAndLink")
	defer span.End()

	info, err := runExtraction[entities.PatientInfo](ctx, s.extractor, patientInfoSpec(s.model), documentText)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	if info.IsEmpty() {
		observability.LoggerFromContext(ctx).Warn().Msg("No patient details found in document")
		return "", nil
	}

	patientID, err := s.findOrCreate(ctx, info)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	if err := s.cases.UpdateCase(ctx, caseID, entities.CaseUpdate{PatientID: patientID}); err != nil {
		observability.RecordError(span, err)
		return "", storeError(fmt.Sprintf("failed to link patient to case %s", caseID), err)
	}

	observability.LoggerFromContext(ctx).Info().Str("patient_id", patientID).Msg("Linked patient to case")
	return patientID, nil
}

func (s *PatientService) findOrCreate(ctx context.Context, info *entities.PatientInfo) (string, error) {
	logger := observability.LoggerFromContext(ctx)

	if info.Email != "" {
		p, err := s.patients.FindByEmail(ctx, info.Email)
		if err == nil && p != nil {
			logger.Info().Str("patient_id", p.ID).Msg("Found existing patient by email")
			return p.ID, nil
		}
		if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return "", storeError("failed to find patient by email", err)
		}
	}

	if info.Phone != "" {
		p, err := s.patients.FindByPhone(ctx, info.Phone)
		if err == nil && p != nil {
			logger.Info().Str("patient_id", p.ID).Msg("Found existing patient by phone")
			return p.ID, nil
		}
		if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return "", storeError("failed to find patient by phone", err)
		}
	}

	patient := &entities.Patient{
		Name:           info.Name,
		Email:          info.Email,
		Phone:          info.Phone,
		AdditionalData: info.AdditionalData(s.now()),
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		return "", storeError("failed to create patient", err)
	}
	logger.Info().Str("patient_id", patient.ID).Msg("Created new patient")
	return patient.ID, nil
}
