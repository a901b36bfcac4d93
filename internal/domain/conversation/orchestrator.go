// Package conversation drives the bounded tool-calling loop between the
// language model and the action dispatcher for a single mention.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/janhq/mention-agent/internal/domain/action"
	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/llm"
	"github.com/janhq/mention-agent/internal/domain/status"
	"github.com/janhq/mention-agent/internal/infrastructure/metrics"
	"github.com/janhq/mention-agent/internal/infrastructure/observability"
	"github.com/janhq/mention-agent/internal/utils/idgen"
)

// DefaultMaxRounds bounds the number of model calls per conversation.
const DefaultMaxRounds = 8

// ErrProviderUnavailable matches model call failures that survived the
// retry policy.
var ErrProviderUnavailable = agentErrors.New(agentErrors.KindTransport, agentErrors.ErrCodeProviderError,
	"model provider unavailable", status.ErrorSeveritySkippable)

// Options configures an Orchestrator.
type Options struct {
	Model       string
	Temperature float32
	MaxRounds   int
}

// Transcript is the full record of one run.
type Transcript struct {
	RunID      string                         `json:"run_id"`
	Answer     string                         `json:"answer"`
	Rounds     int                            `json:"rounds"`
	Messages   []openai.ChatCompletionMessage `json:"messages"`
	Executions []action.Execution             `json:"executions"`
}

// Orchestrator runs conversations. It holds no per-run state and is safe to
// reuse across notifications.
type Orchestrator struct {
	provider    llm.Provider
	dispatcher  *action.Dispatcher
	model       string
	temperature float32
	maxRounds   int
	log         zerolog.Logger
}

// New creates an orchestrator. The provider is expected to carry its own
// retry decorator.
func New(provider llm.Provider, dispatcher *action.Dispatcher, opts Options, log zerolog.Logger) *Orchestrator {
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Orchestrator{
		provider:    provider,
		dispatcher:  dispatcher,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxRounds:   maxRounds,
		log:         log.With().Str("component", "orchestrator").Logger(),
	}
}

// MaxRounds returns the round cap.
func (o *Orchestrator) MaxRounds() int {
	return o.maxRounds
}

// Run answers text written by identity and returns the reply.
func (o *Orchestrator) Run(ctx context.Context, systemPrompt, identity, text string) (string, error) {
	transcript, err := o.RunDetailed(ctx, systemPrompt, identity, text)
	if err != nil {
		return "", err
	}
	return transcript.Answer, nil
}

// RunDetailed is Run but also returns the transcript. The transcript is
// non-nil even when an error is returned.
func (o *Orchestrator) RunDetailed(ctx context.Context, systemPrompt, identity, text string) (*Transcript, error) {
	ctx, span := observability.StartConversationSpan(ctx, o.maxRounds)
	defer span.End()

	transcript := &Transcript{
		RunID: idgen.RunID(),
		Messages: []openai.ChatCompletionMessage{
			llm.SystemMessage(systemPrompt),
			llm.UserMessage(UserTurn(identity, text)),
		},
	}
	session := o.dispatcher.NewSession()
	log := o.log.With().Str("run_id", transcript.RunID).Logger()

	finish := func(err error) (*Transcript, error) {
		transcript.Executions = session.Executions()
		statusLabel := "success"
		if err != nil {
			statusLabel = "error"
			var agentErr *agentErrors.AgentError
			severity := "unknown"
			if errors.As(err, &agentErr) {
				severity = agentErr.Severity.String()
			}
			observability.RecordError(span, err, severity)
		}
		metrics.RecordConversation(statusLabel, transcript.Rounds)
		return transcript, err
	}

	tools := o.dispatcher.Tools()
	for round := 1; round <= o.maxRounds; round++ {
		transcript.Rounds = round

		completion, err := o.complete(ctx, round, transcript.Messages, tools)
		if err != nil {
			log.Warn().Err(err).Int("round", round).Msg("model call failed")
			return finish(err)
		}

		switch c := completion.(type) {
		case llm.ToolCalls:
			calls := withIDs(c.Calls)
			assistant := c.Message
			assistant.ToolCalls = calls
			transcript.Messages = append(transcript.Messages, assistant)

			for _, tc := range calls {
				result := session.Dispatch(ctx, action.CallFromTool(tc))
				transcript.Messages = append(transcript.Messages, llm.ToolMessage(tc.ID, result.Content()))
			}
			log.Debug().Int("round", round).Int("tool_calls", len(calls)).Msg("tool round completed")

		case llm.Stop:
			transcript.Messages = append(transcript.Messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: c.Text,
			})
			answer := ExtractAnswer(c.Text)
			if answer == "" {
				return finish(agentErrors.ErrEmptyAnswer)
			}
			transcript.Answer = answer
			log.Debug().Int("round", round).Str("finish_reason", string(c.Reason)).Msg("conversation finished")
			return finish(nil)

		default:
			return finish(agentErrors.WrapFatal(fmt.Errorf("unexpected completion %T", completion), "unexpected completion"))
		}
	}

	log.Warn().Int("max_rounds", o.maxRounds).Msg("round limit exceeded")
	return finish(agentErrors.ErrRoundLimitExceeded)
}

func (o *Orchestrator) complete(ctx context.Context, round int, messages []openai.ChatCompletionMessage, tools []openai.Tool) (llm.Completion, error) {
	ctx, span := observability.StartRoundSpan(ctx, round)
	defer span.End()

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: wireTemperature(o.temperature),
	}
	if len(tools) > 0 {
		req.Tools = tools
	}

	start := time.Now()
	resp, err := o.provider.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	o.log.Debug().Int("round", round).Dur("latency", time.Since(start)).Msg("model responded")

	return llm.FirstCompletion(resp)
}

// wireTemperature keeps a zero temperature on the wire. The request field is
// omitempty, so 0 would fall back to the provider default of 1.
func wireTemperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// withIDs returns calls with a generated id on every call that lacks one,
// so each tool turn can reference its call.
func withIDs(calls []openai.ToolCall) []openai.ToolCall {
	out := make([]openai.ToolCall, len(calls))
	copy(out, calls)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = idgen.ToolCallID()
		}
	}
	return out
}
