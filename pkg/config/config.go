package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends
const (
	StoreBackendPostgres = "postgres"
	StoreBackendSQLite   = "sqlite"
	StoreBackendConvex   = "convex"
)

// Config holds all application configuration
type Config struct {
	Env          string
	Server       ServerConfig
	Store        StoreConfig
	Database     DatabaseConfig
	SQLite       SQLiteConfig
	Convex       ConvexConfig
	Redis        RedisConfig
	OpenAI       OpenAIConfig
	Documents    DocumentsConfig
	Orchestrator OrchestratorConfig
	OTEL         OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// StoreConfig selects the store implementation
type StoreConfig struct {
	Backend string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// SQLiteConfig holds the embedded store configuration
type SQLiteConfig struct {
	Path string
}

// ConvexConfig holds the Convex deployment configuration
type ConvexConfig struct {
	URL       string
	DeployKey string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	ClassifyModel  string
	RulesModel     string
	EvaluateModel  string
	RateLimitRPM   int
	RateLimitBurst int
}

// DocumentsConfig holds document-to-text configuration
type DocumentsConfig struct {
	ConverterURL     string
	StructureEnabled bool
	FetchTimeout     time.Duration
	CacheTTL         time.Duration
}

// OrchestratorConfig holds classification and rule evaluation tuning
type OrchestratorConfig struct {
	ExtractionTimeout   time.Duration
	RuleConcurrency     int
	RuleFallbackEnabled bool
	RuleFallbackFile    string
	LeaseTTL            time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	setDefaults(v)

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{
		Env: v.GetString("ENV"),
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(v.GetString("STORE_BACKEND")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		SQLite: SQLiteConfig{
			Path: v.GetString("SQLITE_PATH"),
		},
		Convex: ConvexConfig{
			URL:       v.GetString("CONVEX_URL"),
			DeployKey: v.GetString("CONVEX_DEPLOY_KEY"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Enabled:  v.GetBool("REDIS_ENABLED"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         v.GetString("OPENAI_API_KEY"),
			BaseURL:        v.GetString("OPENAI_BASE_URL"),
			Model:          v.GetString("OPENAI_MODEL"),
			ClassifyModel:  v.GetString("OPENAI_MODEL_CLASSIFY"),
			RulesModel:     v.GetString("OPENAI_MODEL_RULES"),
			EvaluateModel:  v.GetString("OPENAI_MODEL_EVALUATE"),
			RateLimitRPM:   v.GetInt("OPENAI_RATE_LIMIT_RPM"),
			RateLimitBurst: v.GetInt("OPENAI_RATE_LIMIT_BURST"),
		},
		Documents: DocumentsConfig{
			ConverterURL:     v.GetString("DOCUMENT_CONVERTER_URL"),
			StructureEnabled: v.GetBool("DOCUMENT_STRUCTURE_ENABLED"),
			FetchTimeout:     v.GetDuration("DOCUMENT_FETCH_TIMEOUT"),
			CacheTTL:         v.GetDuration("DOCUMENT_CACHE_TTL"),
		},
		Orchestrator: OrchestratorConfig{
			ExtractionTimeout:   v.GetDuration("EXTRACTION_TIMEOUT"),
			RuleConcurrency:     v.GetInt("RULE_EVALUATION_CONCURRENCY"),
			RuleFallbackEnabled: v.GetBool("RULE_FALLBACK_ENABLED"),
			RuleFallbackFile:    v.GetString("RULE_FALLBACK_FILE"),
			LeaseTTL:            v.GetDuration("TAXONOMY_LEASE_TTL"),
		},
		OTEL: OTELConfig{
			ServiceName:    v.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion: v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:       v.GetString("OTEL_ENDPOINT"),
			Enabled:        v.GetBool("OTEL_ENABLED"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("REQUEST_TIMEOUT", "10m")
	v.SetDefault("ALLOWED_ORIGINS", "*")

	v.SetDefault("STORE_BACKEND", StoreBackendPostgres)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "referral_intake")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("SQLITE_PATH", "data/referral_intake.db")

	v.SetDefault("CONVEX_URL", "")
	v.SetDefault("CONVEX_DEPLOY_KEY", "")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_ENABLED", true)

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_MODEL_CLASSIFY", "")
	v.SetDefault("OPENAI_MODEL_RULES", "")
	v.SetDefault("OPENAI_MODEL_EVALUATE", "")
	v.SetDefault("OPENAI_RATE_LIMIT_RPM", 60)
	v.SetDefault("OPENAI_RATE_LIMIT_BURST", 5)

	v.SetDefault("DOCUMENT_CONVERTER_URL", "")
	v.SetDefault("DOCUMENT_STRUCTURE_ENABLED", false)
	v.SetDefault("DOCUMENT_FETCH_TIMEOUT", "60s")
	v.SetDefault("DOCUMENT_CACHE_TTL", "1h")

	v.SetDefault("EXTRACTION_TIMEOUT", "90s")
	v.SetDefault("RULE_EVALUATION_CONCURRENCY", 0)
	v.SetDefault("RULE_FALLBACK_ENABLED", true)
	v.SetDefault("RULE_FALLBACK_FILE", "")
	v.SetDefault("TAXONOMY_LEASE_TTL", "30s")

	v.SetDefault("OTEL_SERVICE_NAME", "referral-intake")
	v.SetDefault("OTEL_SERVICE_VERSION", "1.0.0")
	v.SetDefault("OTEL_ENDPOINT", "")
	v.SetDefault("OTEL_ENABLED", false)
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendPostgres, StoreBackendSQLite:
	case StoreBackendConvex:
		if c.Convex.URL == "" {
			return fmt.Errorf("CONVEX_URL is required when STORE_BACKEND=%s", StoreBackendConvex)
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Orchestrator.ExtractionTimeout <= 0 {
		return fmt.Errorf("EXTRACTION_TIMEOUT must be positive")
	}
	if c.Orchestrator.RuleConcurrency < 0 {
		return fmt.Errorf("RULE_EVALUATION_CONCURRENCY must not be negative")
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL returns the PostgreSQL URL form used by the migration runner
func (c *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ModelFor returns the task-specific model, falling back to the default model
func (c *OpenAIConfig) ModelFor(override string) string {
	if override != "" {
		return override
	}
	return c.Model
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
