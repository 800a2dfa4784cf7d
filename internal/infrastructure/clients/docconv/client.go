// Package docconv turns referral documents into text for extraction.
package docconv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
	"github.com/zatekoja/referralintake/pkg/config"
	apperrors "github.com/zatekoja/referralintake/pkg/errors"
	"github.com/zatekoja/referralintake/pkg/retry"
	"go.opentelemetry.io/otel/attribute"
)

// maxDocumentSize caps downloads at 32 MiB
const maxDocumentSize = 32 << 20

// Client downloads documents and converts them to text. Plain text, Markdown
// and HTML documents are returned as-is; PDFs are posted to the configured
// converter service, which answers {"text": "..."}.
type Client struct {
	converterURL string
	httpClient   *http.Client
	retry        retry.Config
}

// NewClient creates a new document conversion client
func NewClient(cfg *config.DocumentsConfig) *Client {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		converterURL: strings.TrimSpace(cfg.ConverterURL),
		httpClient:   &http.Client{Timeout: timeout},
		retry:        retry.RequestConfig(),
	}
}

type conversionResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// ToText downloads the document at fileURL and returns its text
func (c *Client) ToText(ctx context.Context, fileURL string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "docconv.ToText")
	defer span.End()

	body, err := c.fetch(ctx, fileURL)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	mtype := mimetype.Detect(body)
	observability.SetSpanAttributes(span,
		attribute.String("document.mime_type", mtype.String()),
		attribute.Int("document.size", len(body)),
	)

	switch {
	case isText(mtype):
		return string(body), nil
	case mtype.Is("application/pdf"):
		text, err := c.convert(ctx, body, mtype.String())
		if err != nil {
			observability.RecordError(span, err)
			return "", err
		}
		return text, nil
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("unsupported document type %s", mtype.String()))
	}
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func (c *Client) fetch(ctx context.Context, fileURL string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return retry.Permanent(apperrors.NewValidationError(fmt.Sprintf("invalid document url %q", fileURL)))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("document download failed with status %d", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return retry.Permanent(fmt.Errorf("document download failed with status %d", resp.StatusCode))
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
		if err != nil {
			return err
		}
		if len(data) > maxDocumentSize {
			return retry.Permanent(apperrors.NewValidationError("document exceeds the 32 MiB limit"))
		}
		body = data
		return nil
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			return nil, err
		}
		return nil, apperrors.NewExternalError("failed to download document", err)
	}
	return body, nil
}

func (c *Client) convert(ctx context.Context, body []byte, contentType string) (string, error) {
	if c.converterURL == "" {
		return "", apperrors.NewValidationError(fmt.Sprintf("no document converter configured for %s", contentType))
	}

	var text string
	err := retry.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.converterURL, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var out conversionResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode < 300 {
			return retry.Permanent(fmt.Errorf("failed to decode converter response: %w", err))
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("converter failed with status %d: %s", resp.StatusCode, out.Error)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return retry.Permanent(fmt.Errorf("converter rejected document with status %d: %s", resp.StatusCode, out.Error))
		}
		text = out.Text
		return nil
	})
	if err != nil {
		return "", apperrors.NewExternalError("failed to convert document", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", apperrors.NewExternalError("document converter returned no text", nil)
	}
	return text, nil
}
