package providers

import (
	"context"
	"errors"
)

// ErrExtractionUnauthorized indicates the extraction backend rejected the credentials.
var ErrExtractionUnauthorized = errors.New("extraction provider unauthorized")

// AgentSpec describes one structured-extraction task
type AgentSpec struct {
	// Name identifies the task in logs, metrics and the schema envelope
	Name string
	// Instructions is the system prompt of the task
	Instructions string
	// Model overrides the provider's default model when non-empty
	Model string
	// Schema is the JSON schema the output must conform to
	Schema map[string]interface{}
}

// ExtractionProvider runs a structured-extraction task over free text and
// decodes the result into out, which must be a pointer.
type ExtractionProvider interface {
	Run(ctx context.Context, spec AgentSpec, input string, out interface{}) error
}

// Validator is implemented by extraction outputs that check their own
// required fields after decoding.
type Validator interface {
	Validate() error
}
