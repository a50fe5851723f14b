package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"discovery/pkg/resilience/retry"
)

// Host provides the runtime primitives the machine suspends on.
type Host interface {
	// Await blocks until cond holds, d elapses (timedOut) or ctx ends (err).
	Await(ctx context.Context, d time.Duration, cond func() bool) (timedOut bool, err error)

	// Execute runs an activity call with retries and a per-attempt timeout.
	Execute(ctx context.Context, name string, fn func(ctx context.Context) error) error

	// Notify wakes pending Await calls so they re-check their condition.
	Notify()
}

// LocalHost runs everything in-process. Timers do not survive a restart; resuming is
// done by restoring a persisted State.
type LocalHost struct {
	policy         *retry.Policy
	attemptTimeout time.Duration

	mu   sync.Mutex
	wake chan struct{}
}

// HostConfig tunes LocalHost.
type HostConfig struct {
	Retry          retry.Config
	AttemptTimeout time.Duration
}

// DefaultHostConfig retries three times with five-minute attempts.
func DefaultHostConfig() HostConfig {
	cfg := retry.DefaultConfig
	cfg.MaxAttempts = DefaultAttempts
	return HostConfig{Retry: cfg, AttemptTimeout: DefaultAttemptTimeout}
}

// NewLocalHost creates an in-process host.
func NewLocalHost(cfg HostConfig) *LocalHost {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	return &LocalHost{
		policy:         retry.NewPolicy(cfg.Retry, shouldRetryActivity),
		attemptTimeout: cfg.AttemptTimeout,
		wake:           make(chan struct{}),
	}
}

// shouldRetryActivity retries everything except fatal errors. A per-attempt deadline
// is retried; parent cancellation is handled by the policy itself.
func shouldRetryActivity(err error) bool {
	return err != nil && !errors.Is(err, ErrFatal)
}

// Await implements Host.
func (h *LocalHost) Await(ctx context.Context, d time.Duration, cond func() bool) (bool, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		// Grab the channel before checking so a Notify in between is not lost.
		h.mu.Lock()
		wake := h.wake
		h.mu.Unlock()

		if cond() {
			return false, nil
		}

		select {
		case <-wake:
		case <-timer.C:
			return !cond(), nil
		case <-ctx.Done():
			return false, fmt.Errorf("await cancelled: %w", ctx.Err())
		}
	}
}

// Execute implements Host.
func (h *LocalHost) Execute(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	err := h.policy.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, h.attemptTimeout)
		defer cancel()
		return fn(attemptCtx)
	})
	if err != nil {
		return fmt.Errorf("activity %s: %w", name, err)
	}
	return nil
}

// Notify implements Host.
func (h *LocalHost) Notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	close(h.wake)
	h.wake = make(chan struct{})
}
