package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferProvider(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-sonnet-4-5", ProviderAnthropic},
		{"gpt-5", ProviderOpenAI},
		{"o3-mini", ProviderOpenAI},
		{"gemini-2.5-flash", ProviderGoogle},
		{"llama3.1", ProviderOllama},
		{"ollama:phi4", ProviderOllama},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := InferProvider(tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := InferProvider("mystery-model")
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ProviderNone, cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Resilience.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Resilience.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Workflow.ResponseTimeout)
	assert.Equal(t, 20, cfg.Workflow.MaxExchanges)
	assert.Equal(t, VariantFivePhase, cfg.Workflow.Variant)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, "discovery", cfg.Metrics.Namespace)
	require.NoError(t, validateConfig(&cfg))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "acme" }, "unknown llm provider"},
		{"missing key", func(c *Config) { c.LLM.Provider = ProviderAnthropic }, "ANTHROPIC_API_KEY"},
		{"bad temperature", func(c *Config) { c.LLM.Temperature = 3 }, "temperature"},
		{"bad variant", func(c *Config) { c.Workflow.Variant = "six_phase" }, "variant"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = StoragePostgres }, "dsn"},
		{"export without endpoint", func(c *Config) { c.Export.Enabled = true }, "endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := validateConfig(&cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
