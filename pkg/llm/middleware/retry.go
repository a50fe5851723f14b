// Package middleware provides retry, timeout, circuit breaking and metrics wrappers
// for llm clients.
package middleware

import (
	"context"
	"errors"

	"discovery/pkg/llm"
	"discovery/pkg/resilience/retry"
)

// Retry wraps a client with the policy's backoff. Exhausting the attempts on a
// retryable error surfaces as a service unavailable error.
func Retry(policy *retry.Policy) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Response, error) {
				var resp llm.Response
				err := policy.Do(ctx, func(ctx context.Context) error {
					var callErr error
					resp, callErr = next.Complete(ctx, req)
					if callErr != nil {
						return llm.Classify(callErr)
					}
					return nil
				})
				var exhausted *retry.ExhaustedError
				if errors.As(err, &exhausted) {
					return llm.Response{}, llm.NewServiceUnavailableError(exhausted.Last, exhausted.Attempts)
				}
				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.ModelName,
		)
	}
}
