package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/zatekoja/referralintake/internal/domain/providers"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"github.com/zatekoja/referralintake/pkg/config"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements providers.ExtractionProvider over the OpenAI Responses API
// with strict JSON schema output.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			// the caller's context carries the per-call budget
			Timeout: 5 * time.Minute,
		},
		limiter: newLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst),
		breaker: newBreaker(),
	}, nil
}

func newLimiter(rpm int, burst int) *rate.Limiter {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)
}

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			var upstream *upstreamError
			return err == nil || !errors.As(err, &upstream)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			observability.GetLogger().Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// upstreamError marks failures that count against the circuit breaker:
// transport errors, 429 and 5xx responses
type upstreamError struct {
	err error
}

func (e *upstreamError) Error() string { return e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }

type textFormat struct {
	Type   string                 `json:"type"`
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
	Strict bool                   `json:"strict"`
}

type responseRequest struct {
	Model        string  `json:"model"`
	Instructions string  `json:"instructions,omitempty"`
	Input        string  `json:"input"`
	Temperature  float64 `json:"temperature"`
	Text         struct {
		Format textFormat `json:"format"`
	} `json:"text"`
}

type responseContent struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Refusal string `json:"refusal"`
}

type responseOutput struct {
	Type    string            `json:"type"`
	Content []responseContent `json:"content"`
}

type responseEnvelope struct {
	Status            string           `json:"status"`
	Output            []responseOutput `json:"output"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Run executes one extraction task and decodes the schema-conforming output
// into out.
func (c *Client) Run(ctx context.Context, spec providers.AgentSpec, input string, out interface{}) error {
	model := spec.Model
	if model == "" {
		model = c.model
	}

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordOpenAIMetric(ctx, model, spec.Name, 0, 0, err)
			return apperrors.NewExtractionError("openai rate limiter wait aborted", err)
		}
		recordOpenAIRateLimitWait(ctx, model, time.Since(waitStart))
	}

	payload := responseRequest{
		Model:        model,
		Instructions: spec.Instructions,
		Input:        input,
		Temperature:  0.2,
	}
	payload.Text.Format = textFormat{
		Type:   "json_schema",
		Name:   spec.Name,
		Schema: spec.Schema,
		Strict: true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewExtractionError("failed to encode openai request", err)
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, body)
	})
	if err != nil {
		statusCode := 0
		var se *statusError
		if errors.As(err, &se) {
			statusCode = se.code
		}
		recordOpenAIMetric(ctx, model, spec.Name, statusCode, time.Since(start), err)
		if errors.Is(err, providers.ErrExtractionUnauthorized) {
			return apperrors.NewExtractionError("openai rejected the api key", err)
		}
		return apperrors.NewExtractionError("openai request failed", err)
	}
	envelope := result.(*responseEnvelope)

	text, err := outputText(envelope)
	if err != nil {
		recordOpenAIMetric(ctx, model, spec.Name, http.StatusOK, time.Since(start), err)
		return apperrors.NewExtractionError("openai response has no usable output", err)
	}

	if err := json.Unmarshal([]byte(cleanJSON(text)), out); err != nil {
		recordOpenAIMetric(ctx, model, spec.Name, http.StatusOK, time.Since(start), err)
		return apperrors.NewExtractionError("failed to parse openai response", err)
	}

	recordOpenAIMetric(ctx, model, spec.Name, http.StatusOK, time.Since(start), nil)
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("openai request failed with status %d", e.code)
	}
	return fmt.Sprintf("openai request failed with status %d: %s", e.code, e.body)
}

func (c *Client) do(ctx context.Context, body []byte) (*responseEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &upstreamError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %w", providers.ErrExtractionUnauthorized, se)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, &upstreamError{err: se}
		default:
			return nil, se
		}
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode openai response: %w", err)
	}
	return &envelope, nil
}

// outputText returns the first output_text item of a completed response
func outputText(envelope *responseEnvelope) (string, error) {
	if envelope.Error != nil && envelope.Error.Message != "" {
		return "", errors.New(envelope.Error.Message)
	}
	if envelope.Status == "incomplete" {
		reason := "unknown"
		if envelope.IncompleteDetails != nil && envelope.IncompleteDetails.Reason != "" {
			reason = envelope.IncompleteDetails.Reason
		}
		return "", fmt.Errorf("response incomplete: %s", reason)
	}
	for _, out := range envelope.Output {
		for _, content := range out.Content {
			if content.Type == "refusal" && content.Refusal != "" {
				return "", fmt.Errorf("model refused: %s", content.Refusal)
			}
			if content.Type == "output_text" && content.Text != "" {
				return content.Text, nil
			}
		}
	}
	return "", errors.New("missing output text")
}

// cleanJSON strips Markdown code fences around a JSON payload
func cleanJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

type openAIMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var (
	openaiMetricsOnce sync.Once
	openaiMetricsInit bool
	openaiMetrics     openAIMetrics
)

func ensureOpenAIMetrics() {
	openaiMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/zatekoja/referralintake/openai")

		requestCount, err := meter.Int64Counter(
			"ai.openai.request.count",
			metric.WithDescription("Number of OpenAI requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.openai.request.duration",
			metric.WithDescription("OpenAI request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.openai.request.errors",
			metric.WithDescription("Number of OpenAI request errors"),
		)
		if err != nil {
			return
		}
		rateLimitWait, err := meter.Float64Histogram(
			"ai.openai.rate_limit.wait",
			metric.WithDescription("Time spent waiting for OpenAI rate limiter in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}

		openaiMetrics = openAIMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
			rateLimitWait:   rateLimitWait,
		}
		openaiMetricsInit = true
	})
}

func recordOpenAIMetric(ctx context.Context, model, task string, statusCode int, duration time.Duration, err error) {
	ensureOpenAIMetrics()
	if !openaiMetricsInit {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
		attribute.String("ai.task", task),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	openaiMetrics.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	openaiMetrics.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		openaiMetrics.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordOpenAIRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	ensureOpenAIMetrics()
	if !openaiMetricsInit {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	openaiMetrics.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs...))
}
