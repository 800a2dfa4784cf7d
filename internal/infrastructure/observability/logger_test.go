package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFromContext_AddsCaseID(t *testing.T) {
	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = original })

	ctx := WithCaseID(context.Background(), "case-42")
	LoggerFromContext(ctx).Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "case-42", entry["case_id"])
	assert.Equal(t, "hello", entry["message"])
}

func TestLoggerFromContext_WithoutCaseID(t *testing.T) {
	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = original })

	LoggerFromContext(context.Background()).Info().Msg("plain")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, ok := entry["case_id"]
	assert.False(t, ok)
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, nil, "GET", "/health", 200, 0)
		RecordDBMetric(ctx, nil, "select", 0)
		RecordExtractionMetric(ctx, nil, "classification", 0, nil)
		RecordTaxonomyCreated(ctx, nil, "procedure")
		RecordRuleCheck(ctx, nil, "valid", true)
	})
}
