package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ObservabilityMiddleware wraps each request in a span and records the
// request count and duration by route pattern.
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			ctx, span := observability.StartSpan(r.Context(), "http "+r.Method)
			defer span.End()
			r = r.WithContext(ctx)

			next.ServeHTTP(rw, r)

			// r.Pattern is set by the mux once routing ran
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			if caseID := r.PathValue("id"); caseID != "" {
				span.SetAttributes(attribute.String("intake.case_id", caseID))
			}

			span.SetName(route)
			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", rw.statusCode),
			)
			if rw.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", rw.statusCode))
			}

			observability.RecordRequestMetric(ctx, metrics, r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}

// statusRecorder captures the status code and keeps streaming working
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
