package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
}

func TestLoad_FileWithSubstitution(t *testing.T) {
	t.Setenv("TEST_DISCOVERY_KEY", "sk-test")
	path := writeConfig(t, `{
		"llm": {"model": "claude-sonnet-4-5", "api_key": "${TEST_DISCOVERY_KEY}"},
		"workflow": {"max_exchanges": 8, "variant": "four_phase"},
		"storage": {"driver": "sqlite", "sqlite_path": "/tmp/x.db"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider, "provider inferred from model")
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 8, cfg.Workflow.MaxExchanges)
	assert.Equal(t, VariantFourPhase, cfg.Workflow.Variant)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.SQLitePath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DISCOVERY_WORKFLOW_RESPONSE_TIMEOUT", "90s")
	t.Setenv("DISCOVERY_WORKFLOW_MAX_EXCHANGES", "12")
	t.Setenv("DISCOVERY_METRICS_ENABLED", "true")
	t.Setenv("DISCOVERY_LLM_TEMPERATURE", "0.3")
	t.Setenv("DISCOVERY_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Workflow.ResponseTimeout)
	assert.Equal(t, 12, cfg.Workflow.MaxExchanges)
	assert.True(t, cfg.Metrics.Enabled)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, "sk-openai", cfg.LLM.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")

	_, err = Load(writeConfig(t, `{"storage": {"driver": "mongo"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}
