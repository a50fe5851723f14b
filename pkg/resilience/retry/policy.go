// Package retry runs calls again with exponential backoff. It backs both the LLM
// middleware chain and the workflow host's activity execution.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// Config defines configuration for retry behavior.
type Config struct {
	MaxAttempts   int           `json:"max_attempts"`   // Attempts including the first call
	InitialDelay  time.Duration `json:"initial_delay"`  // Delay before the second attempt
	MaxDelay      time.Duration `json:"max_delay"`      // Upper bound for any single delay
	BackoffFactor float64       `json:"backoff_factor"` // Growth factor between delays
	Jitter        bool          `json:"jitter"`         // Spread delays by up to ±10%
}

// DefaultConfig is three attempts starting at 100ms.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	MaxAttempts:   3,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// jitterRatio bounds the random spread applied to a delay.
const jitterRatio = 0.1

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// retryable is implemented by errors that know whether they are worth retrying.
type retryable interface {
	IsRetryable() bool
}

// transientMarkers are message fragments of failures that usually clear up on their own.
//
//nolint:gochecknoglobals // fixed marker list
var transientMarkers = []string{
	"timeout", "connection", "network", "temporary",
	"rate", "429", "500", "502", "503", "504",
}

// ShouldRetry is the default classifier. Context errors are final, classified errors
// decide for themselves and anything else is retried only when its message looks
// transient.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var classified retryable
	if errors.As(err, &classified) {
		return classified.IsRetryable()
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Policy pairs a Config with the classifier deciding which errors are retried.
//
//nolint:govet // Simple struct, logical grouping preferred
type Policy struct {
	Config     Config
	Classifier Classifier
}

// NewPolicy creates a policy. A nil classifier means ShouldRetry; fewer than one
// attempt is raised to one.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	config.MaxAttempts = max(config.MaxAttempts, 1)
	return &Policy{Config: config, Classifier: classifier}
}

// CalculateDelay returns the wait before attempt (1-based); the first attempt never
// waits.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	growth := math.Pow(p.Config.BackoffFactor, float64(attempt-2))
	delay := min(time.Duration(float64(p.Config.InitialDelay)*growth), p.Config.MaxDelay)

	if p.Config.Jitter && delay > 0 {
		spread := (rand.Float64()*2 - 1) * jitterRatio //nolint:gosec // jitter needs no crypto randomness
		delay += time.Duration(float64(delay) * spread)
	}
	return delay
}

// ShouldRetry determines if an error should be retried based on the configured classifier.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}

// ExhaustedError reports that every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs fn until it succeeds, returns a non-retryable error, or the attempts run out.
// Exhausting the attempts on a retryable error yields an *ExhaustedError.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.Config.MaxAttempts; attempt++ {
		if delay := p.CalculateDelay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !p.ShouldRetry(err) {
			return err
		}
	}
	return &ExhaustedError{Attempts: p.Config.MaxAttempts, Last: lastErr}
}
