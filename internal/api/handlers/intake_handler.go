package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zatekoja/referralintake/internal/application/services"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

// IntakeService defines the orchestration entry points used by the handler
type IntakeService interface {
	ProcessCase(ctx context.Context, caseID string) (*services.IntakeReport, error)
	ClassifyCase(ctx context.Context, caseID string) (*services.IntakeReport, error)
	ProcessRules(ctx context.Context, caseID string) (*services.IntakeReport, error)
}

// IntakeHandler exposes the intake orchestration over HTTP
type IntakeHandler struct {
	service IntakeService
}

// NewIntakeHandler creates a new intake handler
func NewIntakeHandler(service IntakeService) *IntakeHandler {
	return &IntakeHandler{service: service}
}

type caseRequest struct {
	CaseID string `json:"case_id"`
}

// ProcessPDF handles POST /api/process-pdf
func (h *IntakeHandler) ProcessPDF(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.ProcessCase)
}

// ClassifyReferral handles POST /api/classify-referral
func (h *IntakeHandler) ClassifyReferral(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.ClassifyCase)
}

// ProcessRules handles POST /api/process-rules
func (h *IntakeHandler) ProcessRules(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.ProcessRules)
}

func (h *IntakeHandler) run(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*services.IntakeReport, error)) {
	var req caseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithAppError(w, r, apperrors.NewValidationError("invalid request payload"))
		return
	}
	req.CaseID = strings.TrimSpace(req.CaseID)
	if req.CaseID == "" {
		respondWithAppError(w, r, apperrors.NewValidationError("case_id is required"))
		return
	}

	report, err := op(r.Context(), req.CaseID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}
