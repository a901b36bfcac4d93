package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/infrastructure/metrics"
	"github.com/janhq/mention-agent/internal/infrastructure/observability"
)

// Call is a request to run one action.
type Call struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// CallFromTool converts a model tool call.
func CallFromTool(tc openai.ToolCall) Call {
	return Call{
		ID:        tc.ID,
		Name:      tc.Function.Name,
		Arguments: json.RawMessage(tc.Function.Arguments),
	}
}

// Result is the uniform envelope for a dispatched call. Exactly one of
// Output or Error is meaningful.
type Result struct {
	ID     string `json:"id"`
	Output any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"-"`
}

// IsError reports whether the call failed.
func (r Result) IsError() bool {
	return r.Error != ""
}

// Content serialises the result for a tool turn.
func (r Result) Content() string {
	data, err := json.Marshal(r)
	if err != nil {
		fallback, _ := json.Marshal(Result{ID: r.ID, Error: "result is not serialisable: " + err.Error()})
		return string(fallback)
	}
	return string(data)
}

// Execution records one dispatch.
type Execution struct {
	Call     Call          `json:"call"`
	Result   Result        `json:"result"`
	Duration time.Duration `json:"duration"`
}

// Dispatcher validates and executes calls against a registry. Dispatch never
// returns an error and never panics; every failure becomes an error Result.
type Dispatcher struct {
	registry *Registry
	scope    Scope
	timeout  time.Duration
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher that only reaches actions visible in
// scope. A zero timeout disables the per-call deadline.
func NewDispatcher(registry *Registry, scope Scope, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		scope:    scope,
		timeout:  timeout,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// Tools returns the tool definitions reachable by this dispatcher.
func (d *Dispatcher) Tools() []openai.Tool {
	return d.registry.Tools(d.scope)
}

// Dispatch runs a single call.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (result Result) {
	start := time.Now()
	ctx, span := observability.StartToolSpan(ctx, call.ID, call.Name)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("tool", call.Name).Str("call_id", call.ID).Interface("panic", r).Msg("action panicked")
			result = errorResult(call.ID, agentErrors.ErrCodeActionFailed, fmt.Sprintf("action %s failed: internal error", call.Name))
		}
		statusLabel := "success"
		if result.IsError() {
			statusLabel = "error"
			observability.RecordError(span, errors.New(result.Error), result.Code)
		}
		metrics.RecordToolCall(call.Name, statusLabel, time.Since(start).Seconds())
	}()

	a, ok := d.registry.Lookup(call.Name, d.scope)
	if !ok {
		d.log.Warn().Str("tool", call.Name).Str("call_id", call.ID).Msg("unknown tool requested")
		return errorResult(call.ID, agentErrors.ErrCodeToolNotFound, fmt.Sprintf("Tool '%s' not found", call.Name))
	}

	args, err := a.Validate(call.Arguments)
	if err != nil {
		d.log.Debug().Err(err).Str("tool", call.Name).Str("call_id", call.ID).Msg("tool arguments rejected")
		return errorResult(call.ID, agentErrors.ErrCodeInvalidInput, err.Error())
	}

	execCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	output, err := a.Execute(execCtx, args)
	if err != nil {
		d.log.Warn().Err(err).Str("tool", call.Name).Str("call_id", call.ID).Msg("action failed")
		return errorResult(call.ID, agentErrors.ErrCodeActionFailed, err.Error())
	}
	if output == nil {
		output = "ok"
	}
	return Result{ID: call.ID, Output: output}
}

// NewSession starts an at-most-once dispatch scope, typically one
// conversation.
func (d *Dispatcher) NewSession() *Session {
	return &Session{
		dispatcher: d,
		seen:       make(map[string]struct{}),
	}
}

// Session dispatches each call id at most once and keeps an execution log.
type Session struct {
	dispatcher *Dispatcher

	mu         sync.Mutex
	seen       map[string]struct{}
	executions []Execution
}

// Dispatch runs call unless its id was already dispatched in this session.
func (s *Session) Dispatch(ctx context.Context, call Call) Result {
	s.mu.Lock()
	_, dup := s.seen[call.ID]
	if !dup {
		s.seen[call.ID] = struct{}{}
	}
	s.mu.Unlock()

	start := time.Now()
	var result Result
	if dup {
		s.dispatcher.log.Warn().Str("tool", call.Name).Str("call_id", call.ID).Msg("duplicate tool call id ignored")
		result = errorResult(call.ID, agentErrors.ErrCodeDuplicateCall,
			fmt.Sprintf("tool call %s was already executed", call.ID))
	} else {
		result = s.dispatcher.Dispatch(ctx, call)
	}

	s.mu.Lock()
	s.executions = append(s.executions, Execution{Call: call, Result: result, Duration: time.Since(start)})
	s.mu.Unlock()
	return result
}

// Executions returns a copy of the execution log.
func (s *Session) Executions() []Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Execution, len(s.executions))
	copy(out, s.executions)
	return out
}

func errorResult(id, code, msg string) Result {
	return Result{ID: id, Error: msg, Code: code}
}
