package routes

import (
	"net/http"
	"time"

	"github.com/zatekoja/referralintake/internal/api/handlers"
	"github.com/zatekoja/referralintake/internal/api/middleware"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
)

// Options tunes the middleware chain
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	intakeHandler   *handlers.IntakeHandler
	taxonomyHandler *handlers.TaxonomyHandler
	sseHandler      *handlers.SSEHandler

	metrics *observability.Metrics
	opts    Options
}

// NewRouter creates a new router
func NewRouter(
	intakeHandler *handlers.IntakeHandler,
	taxonomyHandler *handlers.TaxonomyHandler,
	sseHandler *handlers.SSEHandler,
	metrics *observability.Metrics,
	opts Options,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		intakeHandler:   intakeHandler,
		taxonomyHandler: taxonomyHandler,
		sseHandler:      sseHandler,
		metrics:         metrics,
		opts:            opts,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Orchestration endpoints run under the request budget; event streams do not
	timed := middleware.RequestTimeout(r.opts.RequestTimeout)

	r.mux.Handle("POST /api/process-pdf", timed(http.HandlerFunc(r.intakeHandler.ProcessPDF)))
	r.mux.Handle("POST /api/classify-referral", timed(http.HandlerFunc(r.intakeHandler.ClassifyReferral)))
	r.mux.Handle("POST /api/process-rules", timed(http.HandlerFunc(r.intakeHandler.ProcessRules)))

	r.mux.Handle("GET /api/taxonomy", timed(http.HandlerFunc(r.taxonomyHandler.GetTaxonomy)))

	r.mux.HandleFunc("GET /api/cases/events", r.sseHandler.StreamAllCaseEvents)
	r.mux.HandleFunc("GET /api/cases/{id}/events", r.sseHandler.StreamCaseEvents)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.Compression(handler)

	// CORS wraps everything so preflight never reaches the handlers
	handler = middleware.CORSMiddleware(r.opts.AllowedOrigins)(handler)

	return handler
}
