package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendPostgres, cfg.Store.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Orchestrator.ExtractionTimeout)
	assert.Equal(t, 0, cfg.Orchestrator.RuleConcurrency)
	assert.True(t, cfg.Orchestrator.RuleFallbackEnabled)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("EXTRACTION_TIMEOUT", "45s")
	t.Setenv("RULE_EVALUATION_CONCURRENCY", "4")
	t.Setenv("RULE_FALLBACK_ENABLED", "false")
	t.Setenv("OPENAI_MODEL_EVALUATE", "gpt-5")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://triage.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendSQLite, cfg.Store.Backend)
	assert.Equal(t, 45*time.Second, cfg.Orchestrator.ExtractionTimeout)
	assert.Equal(t, 4, cfg.Orchestrator.RuleConcurrency)
	assert.False(t, cfg.Orchestrator.RuleFallbackEnabled)
	assert.Equal(t, "gpt-5", cfg.OpenAI.ModelFor(cfg.OpenAI.EvaluateModel))
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ModelFor(cfg.OpenAI.ClassifyModel))
	assert.Equal(t, []string{"http://localhost:3000", "https://triage.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoad_ConvexRequiresURL(t *testing.T) {
	t.Setenv("STORE_BACKEND", "convex")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CONVEX_URL", "https://happy-otter-123.convex.cloud")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://happy-otter-123.convex.cloud", cfg.Convex.URL)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "dynamo")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseURL(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "svc", Password: "pw", Database: "intake", SSLMode: "require"}
	assert.Equal(t, "postgres://svc:pw@db:5433/intake?sslmode=require", db.DatabaseURL())
	assert.Equal(t, "host=db port=5433 user=svc password=pw dbname=intake sslmode=require", db.DatabaseDSN())
}
