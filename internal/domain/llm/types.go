package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/status"
)

// Provider defines the contract for calling an OpenAI compatible
// /v1/chat/completions endpoint.
type Provider interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
}

// Completion is one candidate returned by the model. It is either
// ToolCalls or Stop; match it with a type switch.
type Completion interface {
	isCompletion()
}

// ToolCalls asks the caller to run the listed tools and call the model again.
type ToolCalls struct {
	Message openai.ChatCompletionMessage
	Calls   []openai.ToolCall
}

// Stop carries the model's final answer.
type Stop struct {
	Text   string
	Reason openai.FinishReason
}

func (ToolCalls) isCompletion() {}
func (Stop) isCompletion()      {}

// FirstCompletion converts the first choice of resp. Requests are sent
// with a single candidate, so later choices are never read.
func FirstCompletion(resp *openai.ChatCompletionResponse) (Completion, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, agentErrors.New(agentErrors.KindTransport, agentErrors.ErrCodeProviderError,
			"completion has no choices", status.ErrorSeverityRetryable)
	}
	return FromChoice(resp.Choices[0])
}

// FromChoice classifies a single choice. Tool calls win over the finish
// reason because some providers report "stop" alongside tool calls.
func FromChoice(choice openai.ChatCompletionChoice) (Completion, error) {
	msg := choice.Message
	switch {
	case len(msg.ToolCalls) > 0:
		return ToolCalls{Message: msg, Calls: msg.ToolCalls}, nil
	case choice.FinishReason == openai.FinishReasonContentFilter:
		return nil, agentErrors.ErrContentFiltered
	case choice.FinishReason == openai.FinishReasonToolCalls:
		return ToolCalls{Message: msg}, nil
	default:
		return Stop{Text: msg.Content, Reason: choice.FinishReason}, nil
	}
}

// SystemMessage builds a system turn.
func SystemMessage(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: content}
}

// UserMessage builds a user turn.
func UserMessage(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content}
}

// ToolMessage builds the tool turn answering the call with the given id.
func ToolMessage(callID, content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    content,
		ToolCallID: callID,
	}
}
