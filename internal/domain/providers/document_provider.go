package providers

import "context"

// DocumentTextProvider turns a stored document into plain text
type DocumentTextProvider interface {
	ToText(ctx context.Context, fileURL string) (string, error)
}
