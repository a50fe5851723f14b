// Package config provides configuration loading, validation and defaults for the
// discovery services.
//
// Load reads an optional JSON file (with ${VAR} substitution), then .env, then
// DISCOVERY_* environment overrides, applies defaults and validates. The result is
// returned by value; callers never share a mutable config.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
	ProviderNone      = "none"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Workflow variants.
const (
	VariantFourPhase = "four_phase"
	VariantFivePhase = "five_phase"
)

// EnvPrefix prefixes every environment override, e.g. DISCOVERY_LLM_MODEL.
const EnvPrefix = "DISCOVERY_"

// LLMConfig selects and tunes the completion provider.
type LLMConfig struct {
	Provider    string  `json:"provider"`    // anthropic, openai, google, ollama or none
	Model       string  `json:"model"`       // Empty picks the provider default
	MaxTokens   int     `json:"max_tokens"`  // Completion budget per call
	Temperature float64 `json:"temperature"` // Default sampling temperature
	APIKey      string  `json:"api_key"`     // Falls back to the provider's env variable
	Host        string  `json:"host"`        // Ollama host URL
}

// RetryConfig defines configuration for retry behavior.
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts"`   // Maximum number of attempts (including initial)
	InitialDelay  time.Duration `json:"initial_delay"`  // Initial delay before first retry
	MaxDelay      time.Duration `json:"max_delay"`      // Maximum delay between retries
	BackoffFactor float64       `json:"backoff_factor"` // Multiplier for exponential backoff
	Jitter        bool          `json:"jitter"`         // Add random jitter to prevent thundering herd
}

// CircuitBreakerConfig defines configuration for circuit breaker behavior.
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // Failures before opening circuit
	SuccessThreshold int           `json:"success_threshold"` // Successes to close from half-open
	Cooldown         time.Duration `json:"cooldown"`          // Wait before trying half-open
}

// ResilienceConfig bundles all resilience-related middleware configuration.
type ResilienceConfig struct {
	Retry          RetryConfig          `json:"retry"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	Timeout        time.Duration        `json:"timeout"` // Per-attempt timeout for activities and LLM calls
}

// WorkflowConfig tunes the adaptive interview state machine.
type WorkflowConfig struct {
	ResponseTimeout time.Duration `json:"response_timeout"` // How long to wait for each answer
	MaxExchanges    int           `json:"max_exchanges"`    // Structural cap on interview turns
	Variant         string        `json:"variant"`          // four_phase or five_phase
	CacheSize       int           `json:"cache_size"`       // Finished runs kept for queries
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver     string `json:"driver"`      // memory, sqlite or postgres
	SQLitePath string `json:"sqlite_path"` // File path for the sqlite driver
	DSN        string `json:"dsn"`         // Connection string for the postgres driver
}

// MetricsConfig defines configuration for metrics collection.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled"`        // Whether metrics collection is enabled
	Namespace     string `json:"namespace"`      // Metrics namespace for grouping
	PrometheusURL string `json:"prometheus_url"` // Prometheus server URL for querying totals
}

// ExportConfig configures the S3-compatible artifact exporter.
type ExportConfig struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	UseSSL    bool   `json:"use_ssl"`
}

// Config is the complete service configuration.
type Config struct {
	LLM        LLMConfig        `json:"llm"`
	Resilience ResilienceConfig `json:"resilience"`
	Workflow   WorkflowConfig   `json:"workflow"`
	Storage    StorageConfig    `json:"storage"`
	Metrics    MetricsConfig    `json:"metrics"`
	Export     ExportConfig     `json:"export"`
	Archetypes string           `json:"archetypes"` // Optional YAML file with extra interview archetypes
}

// ProviderPattern represents a pattern for inferring provider from model name.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns defines rules for inferring providers from model names.
//
//nolint:gochecknoglobals // Intentional global for inference rules
var ProviderPatterns = []ProviderPattern{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"phi", ProviderOllama},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"deepseek", ProviderOllama},
	{"ollama:", ProviderOllama},
}

// InferProvider returns the API provider for a model name.
func InferProvider(model string) (string, error) {
	for i := range ProviderPatterns {
		if strings.HasPrefix(model, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no provider pattern match", model)
}

// APIKeyEnv names the environment variable holding a provider's key.
func APIKeyEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

// Default returns a configuration with every default applied and no provider.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}
