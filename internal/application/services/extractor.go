package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/referralintake/internal/domain/providers"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultExtractionTimeout bounds a single extraction call when no budget is configured
const DefaultExtractionTimeout = 90 * time.Second

// Extractor runs extraction tasks with a per-call time budget. Every failure
// it returns is an EXTRACTION error.
type Extractor struct {
	provider providers.ExtractionProvider
	timeout  time.Duration
	metrics  *observability.Metrics
}

// NewExtractor creates a new extractor
func NewExtractor(provider providers.ExtractionProvider, timeout time.Duration, metrics *observability.Metrics) *Extractor {
	if timeout <= 0 {
		timeout = DefaultExtractionTimeout
	}
	return &Extractor{
		provider: provider,
		timeout:  timeout,
		metrics:  metrics,
	}
}

// Run executes one extraction and decodes the result into out. When out
// implements providers.Validator it is validated after decoding.
func (e *Extractor) Run(ctx context.Context, spec providers.AgentSpec, input string, out interface{}) error {
	ctx, span := observability.StartSpan(ctx, "extraction."+spec.Name)
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("intake.task", spec.Name),
		attribute.Int("intake.input_length", len(input)),
	)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	err := e.provider.Run(ctx, spec, input, out)
	if err == nil {
		if v, ok := out.(providers.Validator); ok {
			if verr := v.Validate(); verr != nil {
				err = apperrors.NewExtractionError(fmt.Sprintf("%s extraction returned an invalid result", spec.Name), verr)
			}
		}
	}
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeExtraction) {
		err = apperrors.NewExtractionError(fmt.Sprintf("%s extraction failed", spec.Name), err)
	}

	observability.RecordExtractionMetric(ctx, e.metrics, spec.Name, time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
		observability.LoggerFromContext(ctx).Debug().
			Err(err).
			Str("task", spec.Name).
			Dur("duration", time.Since(start)).
			Msg("Extraction failed")
	}
	return err
}

// runExtraction is the typed form of Extractor.Run
func runExtraction[T any](ctx context.Context, e *Extractor, spec providers.AgentSpec, input string) (*T, error) {
	var out T
	if err := e.Run(ctx, spec, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
