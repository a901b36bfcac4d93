package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/llm"
	"github.com/janhq/mention-agent/internal/domain/retry"
)

func TestFromChoice(t *testing.T) {
	call := openai.ToolCall{ID: "call_1", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: "get_wallet_balance", Arguments: "{}"}}

	tests := []struct {
		name   string
		choice openai.ChatCompletionChoice
		check  func(t *testing.T, c llm.Completion)
	}{
		{
			name: "tool calls",
			choice: openai.ChatCompletionChoice{
				FinishReason: openai.FinishReasonToolCalls,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{call}},
			},
			check: func(t *testing.T, c llm.Completion) {
				tc, ok := c.(llm.ToolCalls)
				require.True(t, ok)
				assert.Len(t, tc.Calls, 1)
				assert.Equal(t, "call_1", tc.Calls[0].ID)
			},
		},
		{
			name: "tool calls reported with stop reason",
			choice: openai.ChatCompletionChoice{
				FinishReason: openai.FinishReasonStop,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{call}},
			},
			check: func(t *testing.T, c llm.Completion) {
				_, ok := c.(llm.ToolCalls)
				assert.True(t, ok)
			},
		},
		{
			name: "stop",
			choice: openai.ChatCompletionChoice{
				FinishReason: openai.FinishReasonStop,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "<response>hi</response>"},
			},
			check: func(t *testing.T, c llm.Completion) {
				stop, ok := c.(llm.Stop)
				require.True(t, ok)
				assert.Equal(t, "<response>hi</response>", stop.Text)
			},
		},
		{
			name: "length is treated as a final answer",
			choice: openai.ChatCompletionChoice{
				FinishReason: openai.FinishReasonLength,
				Message:      openai.ChatCompletionMessage{Content: "partial"},
			},
			check: func(t *testing.T, c llm.Completion) {
				stop, ok := c.(llm.Stop)
				require.True(t, ok)
				assert.Equal(t, openai.FinishReasonLength, stop.Reason)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := llm.FromChoice(tt.choice)
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestFromChoice_ContentFilter(t *testing.T) {
	_, err := llm.FromChoice(openai.ChatCompletionChoice{FinishReason: openai.FinishReasonContentFilter})
	assert.ErrorIs(t, err, agentErrors.ErrContentFiltered)
}

func TestFirstCompletion(t *testing.T) {
	_, err := llm.FirstCompletion(&openai.ChatCompletionResponse{})
	require.Error(t, err)
	assert.Equal(t, agentErrors.KindTransport, agentErrors.KindOf(err))

	completion, err := llm.FirstCompletion(&openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: "first"}, FinishReason: openai.FinishReasonStop},
		{FinishReason: openai.FinishReasonContentFilter},
	}})
	require.NoError(t, err)
	stop, ok := completion.(llm.Stop)
	require.True(t, ok)
	assert.Equal(t, "first", stop.Text)
}

type flakyProvider struct {
	failures int
	calls    int
}

func (p *flakyProvider) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, errors.New("503 upstream")
	}
	return &openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}}}, nil
}

func TestRetryingProvider(t *testing.T) {
	noSleep := retry.WithSleep(func(context.Context, time.Duration) error { return nil })

	t.Run("recovers within the attempt budget", func(t *testing.T) {
		inner := &flakyProvider{failures: 2}
		provider := llm.NewRetryingProvider(inner, retry.NewExecutor(retry.ModelCallPolicy(), noSleep))

		resp, err := provider.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Choices[0].Message.Content)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		inner := &flakyProvider{failures: 10}
		provider := llm.NewRetryingProvider(inner, retry.NewExecutor(retry.ModelCallPolicy(), noSleep))

		_, err := provider.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{})
		require.Error(t, err)
		assert.Equal(t, 3, inner.calls)
	})
}
