package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"discovery/pkg/llm"
)

// BreakerState represents the current state of a circuit breaker.
type BreakerState int

// Circuit breaker states.
const (
	Closed   BreakerState = iota // Normal operation
	Open                         // Failing, reject requests
	HalfOpen                     // Testing if service recovered
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig defines configuration for circuit breaker behavior.
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // Failures before opening
	SuccessThreshold int           `json:"success_threshold"` // Successes to close from half-open
	Cooldown         time.Duration `json:"cooldown"`          // Wait before trying half-open
}

// DefaultBreakerConfig provides reasonable defaults.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	Cooldown:         30 * time.Second,
}

// OpenCircuitError is returned without calling the provider while the circuit is open.
type OpenCircuitError struct {
	State BreakerState
}

func (e *OpenCircuitError) Error() string {
	return fmt.Sprintf("circuit breaker is %s", e.State)
}

// IsRetryable reports false so an open circuit fails fast through retry.
func (e *OpenCircuitError) IsRetryable() bool { return false }

// Breaker tracks consecutive provider failures.
//
//nolint:govet // Logical field grouping preferred over memory alignment
type Breaker struct {
	config          BreakerConfig
	now             func() time.Time
	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	return &Breaker{config: config, now: time.Now, state: Closed}
}

// Allow checks if a request may proceed, moving Open to HalfOpen after the cooldown.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.now().Sub(b.lastFailureTime) >= b.config.Cooldown {
			b.state = HalfOpen
			b.successCount = 0
			return true
		}
		return false
	default:
		return false
	}
}

// Record records the result of a request.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		switch b.state {
		case Closed:
			b.failureCount = 0
		case HalfOpen:
			b.successCount++
			if b.successCount >= b.config.SuccessThreshold {
				b.state = Closed
				b.failureCount = 0
				b.successCount = 0
			}
		}
		return
	}

	b.failureCount++
	b.lastFailureTime = b.now()
	switch b.state {
	case Closed:
		if b.failureCount >= b.config.FailureThreshold {
			b.state = Open
		}
	case HalfOpen:
		b.state = Open
		b.successCount = 0
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Circuit rejects requests while the breaker is open.
func Circuit(breaker *Breaker) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Response, error) {
				if !breaker.Allow() {
					return llm.Response{}, &OpenCircuitError{State: breaker.State()}
				}
				resp, err := next.Complete(ctx, req)
				breaker.Record(err == nil)
				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.ModelName,
		)
	}
}
