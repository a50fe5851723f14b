package middleware

import (
	"context"
	"time"

	"discovery/pkg/llm"
)

// Timeout gives each request its own deadline to prevent hanging calls.
func Timeout(duration time.Duration) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Response, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				return next.Complete(timeoutCtx, req)
			},
			next.ModelName,
		)
	}
}
