package errors_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/status"
)

func TestAgentError_Error(t *testing.T) {
	err := agentErrors.New(agentErrors.KindAction, "TOOL_TIMEOUT", "Tool execution timed out", status.ErrorSeverityRetryable)

	expected := "TOOL_TIMEOUT: Tool execution timed out"
	if got := err.Error(); got != expected {
		t.Errorf("AgentError.Error() = %v, want %v", got, expected)
	}
}

func TestAgentError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := agentErrors.New(agentErrors.KindPipeline, "WRAPPED", "Wrapped error", status.ErrorSeverityFatal).WithCause(cause)

	expected := "WRAPPED: Wrapped error (caused by: underlying error)"
	if got := err.Error(); got != expected {
		t.Errorf("AgentError.Error() = %v, want %v", got, expected)
	}
	if got := err.Unwrap(); got != cause {
		t.Errorf("AgentError.Unwrap() = %v, want %v", got, cause)
	}
}

func TestAgentError_SentinelsMatchThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("run conversation: %w", agentErrors.ErrRoundLimitExceeded.WithCause(errors.New("round 8")))

	if !errors.Is(wrapped, agentErrors.ErrRoundLimitExceeded) {
		t.Error("expected wrapped error to match ErrRoundLimitExceeded")
	}
	if errors.Is(wrapped, agentErrors.ErrEmptyAnswer) {
		t.Error("did not expect wrapped error to match ErrEmptyAnswer")
	}
	if agentErrors.ErrRoundLimitExceeded.Cause != nil {
		t.Error("WithCause must not mutate the sentinel")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want agentErrors.Kind
	}{
		{"transport", agentErrors.WrapTransport(errors.New("dial"), "call model"), agentErrors.KindTransport},
		{"admission", agentErrors.WrapAdmission(errors.New("revert"), "consume"), agentErrors.KindAdmission},
		{"wrapped admission", fmt.Errorf("outer: %w", agentErrors.ErrNoValidTicket), agentErrors.KindAdmission},
		{"foreign", errors.New("boom"), agentErrors.KindPipeline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := agentErrors.KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifier_Classify(t *testing.T) {
	classifier := agentErrors.NewClassifier()

	tests := []struct {
		name     string
		err      error
		expected status.ErrorSeverity
	}{
		{"nil error", nil, ""},
		{"agent error keeps severity", agentErrors.ErrRateLimit, status.ErrorSeverityRetryable},
		{"context canceled is fatal", fmt.Errorf("call: %w", context.Canceled), status.ErrorSeverityFatal},
		{"deadline exceeded is retryable", context.DeadlineExceeded, status.ErrorSeverityRetryable},
		{"429 is retryable", &agentErrors.HTTPStatusError{StatusCode: http.StatusTooManyRequests}, status.ErrorSeverityRetryable},
		{"503 is retryable", &agentErrors.HTTPStatusError{StatusCode: http.StatusServiceUnavailable}, status.ErrorSeverityRetryable},
		{"400 is fatal", &agentErrors.HTTPStatusError{StatusCode: http.StatusBadRequest}, status.ErrorSeverityFatal},
		{"unknown defaults to retryable", errors.New("connection reset"), status.ErrorSeverityRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(tt.err); got != tt.expected {
				t.Errorf("Classifier.Classify() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClassifier_AddRule(t *testing.T) {
	classifier := agentErrors.NewClassifier()
	custom := errors.New("custom skippable")

	classifier.AddRule(agentErrors.ClassificationRule{
		Match:    func(err error) bool { return errors.Is(err, custom) },
		Severity: status.ErrorSeveritySkippable,
	})

	if got := classifier.Classify(custom); got != status.ErrorSeveritySkippable {
		t.Errorf("Classifier.Classify() = %v, want %v", got, status.ErrorSeveritySkippable)
	}
}
