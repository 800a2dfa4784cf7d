package routes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/referralintake/internal/api/handlers"
	"github.com/zatekoja/referralintake/internal/api/routes"
	"github.com/zatekoja/referralintake/internal/application/services"
)

type stubIntake struct {
	op          string
	hasDeadline bool
}

func (s *stubIntake) run(ctx context.Context, op, caseID string) (*services.IntakeReport, error) {
	s.op = op
	_, s.hasDeadline = ctx.Deadline()
	return &services.IntakeReport{CaseID: caseID, Rules: []services.RuleOutcome{}}, nil
}

func (s *stubIntake) ProcessCase(ctx context.Context, caseID string) (*services.IntakeReport, error) {
	return s.run(ctx, "process", caseID)
}

func (s *stubIntake) ClassifyCase(ctx context.Context, caseID string) (*services.IntakeReport, error) {
	return s.run(ctx, "classify", caseID)
}

func (s *stubIntake) ProcessRules(ctx context.Context, caseID string) (*services.IntakeReport, error) {
	return s.run(ctx, "rules", caseID)
}

type stubTaxonomy struct{}

func (stubTaxonomy) View(ctx context.Context) (*services.TaxonomyView, error) {
	return &services.TaxonomyView{Tree: "Cardiology - Heart\n", Specialties: 1}, nil
}

func newHandler(intake *stubIntake) http.Handler {
	router := routes.NewRouter(
		handlers.NewIntakeHandler(intake),
		handlers.NewTaxonomyHandler(stubTaxonomy{}),
		handlers.NewSSEHandler(nil),
		nil,
		routes.Options{RequestTimeout: time.Minute},
	)
	return router.SetupRoutes()
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(&stubIntake{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRouter_IntakeEndpoints(t *testing.T) {
	for path, op := range map[string]string{
		"/api/process-pdf":       "process",
		"/api/classify-referral": "classify",
		"/api/process-rules":     "rules",
	} {
		t.Run(path, func(t *testing.T) {
			intake := &stubIntake{}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"case_id":"case-1"}`))

			newHandler(intake).ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, op, intake.op)
			assert.True(t, intake.hasDeadline)
			assert.Contains(t, rec.Body.String(), `"case_id":"case-1"`)
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(&stubIntake{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/process-pdf", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_Taxonomy(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(&stubIntake{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/taxonomy", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cardiology")
}

func TestRouter_EventsWithoutBus(t *testing.T) {
	for _, path := range []string{"/api/cases/case-1/events", "/api/cases/events"} {
		rec := httptest.NewRecorder()
		newHandler(&stubIntake{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}
