package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/janhq/mention-agent/internal/domain/retry"
)

// RetryingProvider decorates a Provider with a retry policy. Only the model
// call is retried; tool execution is never wrapped by it.
type RetryingProvider struct {
	next     Provider
	executor *retry.Executor
}

// NewRetryingProvider wraps next with executor.
func NewRetryingProvider(next Provider, executor *retry.Executor) *RetryingProvider {
	return &RetryingProvider{next: next, executor: executor}
}

// CreateChatCompletion calls the wrapped provider until it succeeds or the
// policy gives up.
func (p *RetryingProvider) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	return retry.Do(ctx, p.executor, func(ctx context.Context, _ int) (*openai.ChatCompletionResponse, error) {
		return p.next.CreateChatCompletion(ctx, req)
	})
}

var _ Provider = (*RetryingProvider)(nil)
