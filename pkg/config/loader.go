package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load builds the configuration. configPath may be empty; a missing .env is ignored.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)
	resolveSecrets(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// parse replaces ${VAR} placeholders and decodes JSON.
func parse(data []byte, cfg *Config) error {
	dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		if value := os.Getenv(match[2 : len(match)-1]); value != "" {
			return value
		}
		return match
	})
	if err := json.Unmarshal([]byte(dataStr), cfg); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem(), EnvPrefix)
}

func applyEnvOverridesRecursive(v reflect.Value, prefix string) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		jsonTag := t.Field(i).Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		envKey := prefix + strings.ToUpper(strings.Split(jsonTag, ",")[0])

		if field.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(field, envKey+"_")
			continue
		}
		if envValue := os.Getenv(envKey); envValue != "" {
			setFieldFromEnv(field, envValue)
		}
	}
}

//nolint:gochecknoglobals // type token for reflection
var durationType = reflect.TypeOf(time.Duration(0))

func setFieldFromEnv(field reflect.Value, envValue string) {
	if !field.CanSet() {
		return
	}
	if field.Type() == durationType {
		if d, err := time.ParseDuration(envValue); err == nil {
			field.SetInt(int64(d))
		}
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int:
		if val, err := strconv.Atoi(envValue); err == nil {
			field.SetInt(int64(val))
		}
	case reflect.Float64:
		if val, err := strconv.ParseFloat(envValue, 64); err == nil {
			field.SetFloat(val)
		}
	case reflect.Bool:
		if val, err := strconv.ParseBool(envValue); err == nil {
			field.SetBool(val)
		}
	}
}

// resolveSecrets fills keys from the provider-specific variables when not set explicitly.
func resolveSecrets(cfg *Config) {
	if cfg.LLM.Provider == "" && cfg.LLM.Model != "" {
		if p, err := InferProvider(cfg.LLM.Model); err == nil {
			cfg.LLM.Provider = p
		}
	}
	if cfg.LLM.APIKey == "" {
		if env := APIKeyEnv(cfg.LLM.Provider); env != "" {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}
	if cfg.LLM.Host == "" && cfg.LLM.Provider == ProviderOllama {
		cfg.LLM.Host = os.Getenv("OLLAMA_HOST")
	}
	if cfg.Export.AccessKey == "" {
		cfg.Export.AccessKey = os.Getenv("MINIO_ROOT_USER")
	}
	if cfg.Export.SecretKey == "" {
		cfg.Export.SecretKey = os.Getenv("MINIO_ROOT_PASSWORD")
	}
}

// applyDefaults sets default values for missing configuration.
func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderNone
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}

	r := &cfg.Resilience
	if r.Retry.MaxAttempts == 0 {
		r.Retry.MaxAttempts = 3
		r.Retry.Jitter = true
	}
	if r.Retry.InitialDelay == 0 {
		r.Retry.InitialDelay = time.Second
	}
	if r.Retry.MaxDelay == 0 {
		r.Retry.MaxDelay = 30 * time.Second
	}
	if r.Retry.BackoffFactor == 0 {
		r.Retry.BackoffFactor = 2.0
	}
	if r.CircuitBreaker.FailureThreshold == 0 {
		r.CircuitBreaker.FailureThreshold = 5
	}
	if r.CircuitBreaker.SuccessThreshold == 0 {
		r.CircuitBreaker.SuccessThreshold = 2
	}
	if r.CircuitBreaker.Cooldown == 0 {
		r.CircuitBreaker.Cooldown = 30 * time.Second
	}
	if r.Timeout == 0 {
		r.Timeout = 5 * time.Minute
	}

	w := &cfg.Workflow
	if w.ResponseTimeout == 0 {
		w.ResponseTimeout = 24 * time.Hour
	}
	if w.MaxExchanges == 0 {
		w.MaxExchanges = 20
	}
	if w.Variant == "" {
		w.Variant = VariantFivePhase
	}
	if w.CacheSize == 0 {
		w.CacheSize = 128
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageMemory
	}
	if cfg.Storage.Driver == StorageSQLite && cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "discovery.db"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "discovery"
	}

	if cfg.Export.Region == "" {
		cfg.Export.Region = "us-east-1"
	}
	if cfg.Export.Bucket == "" {
		cfg.Export.Bucket = "discovery-artifacts"
	}
}

func validateConfig(cfg *Config) error {
	var errs []error

	switch cfg.LLM.Provider {
	case ProviderNone, ProviderOllama:
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
		if cfg.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm provider %s requires %s", cfg.LLM.Provider, APIKeyEnv(cfg.LLM.Provider)))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider))
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm temperature must be between 0.0 and 2.0"))
	}
	if cfg.LLM.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("llm max_tokens must be positive"))
	}

	if cfg.Resilience.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry max_attempts must be >= 1"))
	}
	if cfg.Workflow.MaxExchanges < 1 {
		errs = append(errs, fmt.Errorf("workflow max_exchanges must be >= 1"))
	}
	if cfg.Workflow.Variant != VariantFourPhase && cfg.Workflow.Variant != VariantFivePhase {
		errs = append(errs, fmt.Errorf("unknown workflow variant %q", cfg.Workflow.Variant))
	}

	switch cfg.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if cfg.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage driver postgres requires a dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver))
	}

	if cfg.Export.Enabled && cfg.Export.Endpoint == "" {
		errs = append(errs, fmt.Errorf("export is enabled but no endpoint is set"))
	}

	return errors.Join(errs...)
}
