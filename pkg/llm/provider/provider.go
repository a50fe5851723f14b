// Package provider builds a fully wrapped llm.Client from configuration.
package provider

import (
	"fmt"

	"discovery/pkg/config"
	"discovery/pkg/llm"
	"discovery/pkg/llm/anthropic"
	"discovery/pkg/llm/google"
	"discovery/pkg/llm/middleware"
	"discovery/pkg/llm/ollama"
	"discovery/pkg/llm/openai"
	"discovery/pkg/logx"
	"discovery/pkg/resilience/retry"
)

// New returns the configured client wrapped with metrics, retry, circuit breaking and
// per-request timeouts, outermost first. Provider "none" yields a nil client, which
// callers treat as "use deterministic fallbacks". recorder may be nil.
func New(cfg config.Config, recorder middleware.Recorder) (llm.Client, error) {
	base, err := newRaw(cfg.LLM)
	if err != nil || base == nil {
		return nil, err
	}

	r := cfg.Resilience
	policy := retry.NewPolicy(retry.Config{
		MaxAttempts:   r.Retry.MaxAttempts,
		InitialDelay:  r.Retry.InitialDelay,
		MaxDelay:      r.Retry.MaxDelay,
		BackoffFactor: r.Retry.BackoffFactor,
		Jitter:        r.Retry.Jitter,
	}, nil)
	breaker := middleware.NewBreaker(middleware.BreakerConfig{
		FailureThreshold: r.CircuitBreaker.FailureThreshold,
		SuccessThreshold: r.CircuitBreaker.SuccessThreshold,
		Cooldown:         r.CircuitBreaker.Cooldown,
	})

	chain := make([]llm.Middleware, 0, 4)
	if recorder != nil {
		counter, err := llm.NewTokenCounter()
		if err != nil {
			logx.NewLogger("llm").Warn("token counter unavailable, using estimates: %v", err)
		}
		chain = append(chain, middleware.Metrics(recorder, counter, logx.NewLogger("llm")))
	}
	chain = append(chain,
		middleware.Retry(policy),
		middleware.Circuit(breaker),
		middleware.Timeout(r.Timeout),
	)
	return llm.Chain(base, chain...), nil
}

func newRaw(cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderAnthropic:
		return anthropic.New(cfg.APIKey, cfg.Model), nil
	case config.ProviderOpenAI:
		return openai.New(cfg.APIKey, cfg.Model), nil
	case config.ProviderGoogle:
		return google.New(cfg.APIKey, cfg.Model), nil
	case config.ProviderOllama:
		if cfg.Model == "" {
			return nil, fmt.Errorf("ollama provider requires a model")
		}
		return ollama.New(cfg.Host, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
