// Package convex is a client for the Convex HTTP function API.
package convex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"github.com/zatekoja/referralintake/pkg/config"
	"go.opentelemetry.io/otel/attribute"
)

// Client calls Convex queries and mutations over HTTP
type Client struct {
	baseURL    string
	deployKey  string
	httpClient *http.Client
}

// NewClient creates a new Convex client
func NewClient(cfg *config.ConvexConfig) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("convex url is required")
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.URL, "/"),
		deployKey: cfg.DeployKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type functionRequest struct {
	Path   string      `json:"path"`
	Args   interface{} `json:"args"`
	Format string      `json:"format"`
}

type functionResponse struct {
	Status       string          `json:"status"`
	Value        json.RawMessage `json:"value"`
	ErrorMessage string          `json:"errorMessage"`
	ErrorData    json.RawMessage `json:"errorData"`
}

// FunctionError is returned when a Convex function ran and failed
type FunctionError struct {
	Path    string
	Message string
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("convex function %s failed: %s", e.Path, e.Message)
}

// Query runs a Convex query function and decodes its value into out
func (c *Client) Query(ctx context.Context, path string, args interface{}, out interface{}) error {
	return c.call(ctx, "query", path, args, out)
}

// Mutation runs a Convex mutation function and decodes its value into out,
// which may be nil
func (c *Client) Mutation(ctx context.Context, path string, args interface{}, out interface{}) error {
	return c.call(ctx, "mutation", path, args, out)
}

func (c *Client) call(ctx context.Context, kind, path string, args interface{}, out interface{}) error {
	ctx, span := observability.StartSpan(ctx, "convex."+kind)
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("convex.function", path))

	if args == nil {
		args = map[string]interface{}{}
	}
	body, err := json.Marshal(functionRequest{Path: path, Args: args, Format: "json"})
	if err != nil {
		return fmt.Errorf("failed to encode convex %s %s: %w", kind, path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+kind, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.deployKey != "" {
		req.Header.Set("Authorization", "Convex "+c.deployKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("convex %s %s failed: %w", kind, path, err)
	}
	defer resp.Body.Close()

	var result functionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&result); err != nil {
		err = fmt.Errorf("convex %s %s returned status %d with undecodable body: %w", kind, path, resp.StatusCode, err)
		observability.RecordError(span, err)
		return err
	}

	observability.LoggerFromContext(ctx).Debug().
		Str("function", path).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Convex call completed")

	if result.Status != "success" {
		msg := result.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		err := &FunctionError{Path: path, Message: msg}
		observability.RecordError(span, err)
		return err
	}

	if out == nil || len(result.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Value, out); err != nil {
		return fmt.Errorf("failed to decode convex %s %s value: %w", kind, path, err)
	}
	return nil
}
