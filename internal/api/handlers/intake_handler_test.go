package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/referralintake/internal/api/handlers"
	"github.com/zatekoja/referralintake/internal/application/services"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
)

type stubIntakeService struct {
	calls  []string
	report *services.IntakeReport
	err    error
}

func (s *stubIntakeService) record(op, caseID string) (*services.IntakeReport, error) {
	s.calls = append(s.calls, op+":"+caseID)
	if s.err != nil {
		return nil, s.err
	}
	if s.report != nil {
		return s.report, nil
	}
	return &services.IntakeReport{CaseID: caseID, Rules: []services.RuleOutcome{}}, nil
}

func (s *stubIntakeService) ProcessCase(ctx context.Context, caseID string) (*services.IntakeReport, error) {
	return s.record("process", caseID)
}

func (s *stubIntakeService) ClassifyCase(ctx context.Context, caseID string) (*services.IntakeReport, error) {
	return s.record("classify", caseID)
}

func (s *stubIntakeService) ProcessRules(ctx context.Context, caseID string) (*services.IntakeReport, error) {
	return s.record("rules", caseID)
}

func post(handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestIntakeHandler_Routes(t *testing.T) {
	service := &stubIntakeService{}
	handler := handlers.NewIntakeHandler(service)

	for _, tc := range []struct {
		name    string
		handler http.HandlerFunc
		path    string
		call    string
	}{
		{"process pdf", handler.ProcessPDF, "/api/process-pdf", "process:case-1"},
		{"classify referral", handler.ClassifyReferral, "/api/classify-referral", "classify:case-1"},
		{"process rules", handler.ProcessRules, "/api/process-rules", "rules:case-1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := post(tc.handler, tc.path, `{"case_id":" case-1 "}`)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.call, service.calls[len(service.calls)-1])

			var report services.IntakeReport
			require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
			assert.Equal(t, "case-1", report.CaseID)
		})
	}
}

func TestIntakeHandler_ReportBody(t *testing.T) {
	service := &stubIntakeService{report: &services.IntakeReport{
		CaseID: "case-1",
		Tasks: []services.TaskOutcome{
			{Task: services.IntakeTaskPatient, Succeeded: false, Error: "EXTRACTION: patient_info extraction failed"},
		},
		Rules: []services.RuleOutcome{},
	}}
	handler := handlers.NewIntakeHandler(service)

	w := post(handler.ProcessPDF, "/api/process-pdf", `{"case_id":"case-1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	tasks := body["tasks"].([]interface{})
	require.Len(t, tasks, 1)
	assert.Equal(t, false, tasks[0].(map[string]interface{})["succeeded"])
}

func TestIntakeHandler_BadRequests(t *testing.T) {
	service := &stubIntakeService{}
	handler := handlers.NewIntakeHandler(service)

	for _, body := range []string{`not json`, `{}`, `{"case_id":"   "}`} {
		w := post(handler.ProcessPDF, "/api/process-pdf", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, service.calls)
}

func TestIntakeHandler_ErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", apperrors.NewValidationError("case has no documents"), http.StatusBadRequest, "VALIDATION"},
		{"not found", apperrors.NewNotFoundError("case x not found"), http.StatusNotFound, "NOT_FOUND"},
		{"extraction", apperrors.NewExtractionError("classification failed", errors.New("timeout")), http.StatusBadGateway, "EXTRACTION"},
		{"external", apperrors.NewExternalError("converter failed", nil), http.StatusBadGateway, "EXTERNAL"},
		{"integrity", apperrors.NewTaxonomyIntegrityError("orphan procedure"), http.StatusConflict, "TAXONOMY_INTEGRITY"},
		{"store", apperrors.NewStoreError("write failed", errors.New("deadlock")), http.StatusInternalServerError, "STORE"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			handler := handlers.NewIntakeHandler(&stubIntakeService{err: tc.err})

			w := post(handler.ClassifyReferral, "/api/classify-referral", `{"case_id":"case-1"}`)

			assert.Equal(t, tc.status, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tc.kind, body["type"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

type stubTaxonomyService struct {
	view *services.TaxonomyView
	err  error
}

func (s *stubTaxonomyService) View(ctx context.Context) (*services.TaxonomyView, error) {
	return s.view, s.err
}

func TestTaxonomyHandler_GetTaxonomy(t *testing.T) {
	t.Run("renders the view", func(t *testing.T) {
		handler := handlers.NewTaxonomyHandler(&stubTaxonomyService{view: &services.TaxonomyView{
			Tree:        "Cardiology - Heart care\n",
			Specialties: 1,
		}})
		w := httptest.NewRecorder()

		handler.GetTaxonomy(w, httptest.NewRequest(http.MethodGet, "/api/taxonomy", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var view services.TaxonomyView
		require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
		assert.Equal(t, 1, view.Specialties)
		assert.Contains(t, view.Tree, "Cardiology")
	})

	t.Run("integrity failure is a conflict", func(t *testing.T) {
		handler := handlers.NewTaxonomyHandler(&stubTaxonomyService{err: apperrors.NewTaxonomyIntegrityError("orphan")})
		w := httptest.NewRecorder()

		handler.GetTaxonomy(w, httptest.NewRequest(http.MethodGet, "/api/taxonomy", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
