package llm_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discovery/internal/mocks"
	"discovery/pkg/llm"
)

func TestComplete(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.RespondWith("  What brought you here today?\n")

	text, err := llm.Complete(context.Background(), client, "ask an opener", "Ask one question.", 0, llm.TemperatureDefault)
	require.NoError(t, err)
	assert.Equal(t, "What brought you here today?", text)

	req := client.LastCompleteCall()
	require.NotNil(t, req)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.True(t, strings.HasPrefix(req.Messages[0].Content, llm.BaseSystemPrompt))
	assert.True(t, strings.HasSuffix(req.Messages[0].Content, "Ask one question."))
	assert.Equal(t, "ask an opener", req.Messages[1].Content)
	assert.Equal(t, llm.DefaultMaxTokens, req.MaxTokens)
}

func TestComplete_Failures(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		client := mocks.NewMockLLMClient()
		client.RespondWith("   ")
		_, err := llm.Complete(context.Background(), client, "p", "", 100, 0.5)
		require.Error(t, err)
		assert.ErrorIs(t, err, llm.ErrCompletion)
		assert.True(t, llm.Is(err, llm.ErrorTypeEmptyResponse))
	})

	t.Run("provider error is classified", func(t *testing.T) {
		client := mocks.NewMockLLMClient()
		client.FailCompleteWith(errors.New("status code: 429 too many requests"))
		_, err := llm.Complete(context.Background(), client, "p", "", 100, 0.5)
		require.Error(t, err)
		assert.ErrorIs(t, err, llm.ErrCompletion)
		assert.Equal(t, llm.ErrorTypeRateLimit, llm.TypeOf(err))
	})

	t.Run("invalid temperature", func(t *testing.T) {
		client := mocks.NewMockLLMClient()
		_, err := llm.Complete(context.Background(), client, "p", "", 100, 5)
		require.Error(t, err)
		assert.Equal(t, llm.ErrorTypeBadPrompt, llm.TypeOf(err))
		assert.Zero(t, client.GetCompleteCallCount())
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err       error
		want      llm.ErrorType
		retryable bool
	}{
		{errors.New("status: 401 unauthorized"), llm.ErrorTypeAuth, false},
		{errors.New("http 503 service unavailable"), llm.ErrorTypeTransient, true},
		{errors.New("status code: 400 bad request"), llm.ErrorTypeBadPrompt, false},
		{errors.New("connection reset by peer"), llm.ErrorTypeTransient, true},
		{errors.New("monthly quota exhausted"), llm.ErrorTypeRateLimit, true},
		{errors.New("something odd"), llm.ErrorTypeUnknown, true},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), llm.ErrorTypeTransient, true},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := llm.Classify(tt.err)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.retryable, got.IsRetryable())
			assert.ErrorIs(t, got, tt.err)
		})
	}

	classified := llm.NewError(llm.ErrorTypeAuth, "bad key")
	assert.Same(t, classified, llm.Classify(classified))
	assert.Nil(t, llm.Classify(nil))
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) llm.Middleware {
		return func(next llm.Client) llm.Client {
			return llm.WrapClient(func(ctx context.Context, req llm.Request) (llm.Response, error) {
				order = append(order, name)
				return next.Complete(ctx, req)
			}, next.ModelName)
		}
	}

	base := mocks.NewMockLLMClient()
	client := llm.Chain(base, tag("outer"), tag("inner"))
	_, err := client.Complete(context.Background(), llm.NewRequest(llm.NewUserMessage("hi")))
	require.NoError(t, err)

	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "mock-model", client.ModelName())
}

func TestSplitSystem(t *testing.T) {
	system, rest := llm.SplitSystem([]llm.Message{
		llm.NewSystemMessage("a"),
		llm.NewUserMessage("q"),
		llm.NewSystemMessage("b"),
	})
	assert.Equal(t, "a\n\nb", system)
	require.Len(t, rest, 1)
	assert.Equal(t, "q", rest[0].Content)
}

func TestTokenCounter(t *testing.T) {
	var nilCounter *llm.TokenCounter
	assert.Equal(t, 3, nilCounter.Count("twelve chars"))

	counter, err := llm.NewTokenCounter()
	require.NoError(t, err)
	assert.Positive(t, counter.Count("How many people are on the team?"))

	items := []string{"first exchange", "second exchange", "third exchange"}
	assert.Equal(t, items, counter.FitTail(items, 1000))
	assert.Empty(t, counter.FitTail(items, 0))

	last := counter.Count(items[2])
	kept := counter.FitTail(items, last)
	assert.Equal(t, []string{"third exchange"}, kept)
}
