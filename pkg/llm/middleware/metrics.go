package middleware

import (
	"context"
	"strings"
	"time"

	"discovery/pkg/llm"
	"discovery/pkg/logx"
)

// Recorder receives one observation per completion request.
type Recorder interface {
	ObserveLLMRequest(model string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration)
}

// Metrics records latency, token usage and error type for every request. counter may
// be nil, in which case token counts use the character estimate.
func Metrics(recorder Recorder, counter *llm.TokenCounter, logger *logx.Logger) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (llm.Response, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				errorType := ""
				if err == nil {
					var prompt strings.Builder
					for i := range req.Messages {
						prompt.WriteString(req.Messages[i].Content)
						prompt.WriteString("\n")
					}
					promptTokens = counter.Count(prompt.String())
					completionTokens = counter.Count(resp.Content)
				} else {
					errorType = llm.TypeOf(err).String()
				}

				recorder.ObserveLLMRequest(next.ModelName(), promptTokens, completionTokens, err == nil, errorType, duration)
				if logger != nil {
					status := "success"
					if err != nil {
						status = "error"
					}
					logger.Debug("LLM request: model=%s tokens=%d+%d status=%s duration=%dms",
						next.ModelName(), promptTokens, completionTokens, status, duration.Milliseconds())
				}
				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.ModelName,
		)
	}
}
