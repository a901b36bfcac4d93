// Package errors defines the error taxonomy for mention processing and the
// classifier used to decide which failures are worth retrying.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/janhq/mention-agent/internal/domain/status"
)

// Kind groups errors by the layer that produced them.
type Kind string

const (
	KindTransport  Kind = "transport"  // model or network call failed
	KindValidation Kind = "validation" // malformed tool arguments
	KindAction     Kind = "action"     // action executor failed
	KindAdmission  Kind = "admission"  // ticket check or consume failed
	KindPipeline   Kind = "pipeline"   // anything else inside one notification
)

// AgentError is a structured error carrying its kind and handling severity.
type AgentError struct {
	Code     string               `json:"code"`
	Kind     Kind                 `json:"kind"`
	Message  string               `json:"message"`
	Severity status.ErrorSeverity `json:"severity"`
	Cause    error                `json:"-"`
	Details  map[string]any       `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// Is matches another AgentError by code so sentinels work with errors.Is.
func (e *AgentError) Is(target error) bool {
	var other *AgentError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// IsRetryable returns true if the error can be retried.
func (e *AgentError) IsRetryable() bool {
	return e.Severity.IsRetryable()
}

// IsFatal returns true if the error should fail the run.
func (e *AgentError) IsFatal() bool {
	return e.Severity.IsFatal()
}

// New creates a new agent error.
func New(kind Kind, code, message string, severity status.ErrorSeverity) *AgentError {
	return &AgentError{
		Code:     code,
		Kind:     kind,
		Message:  message,
		Severity: severity,
	}
}

// WithCause returns a copy of the error with an underlying cause attached.
func (e *AgentError) WithCause(cause error) *AgentError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithDetails returns a copy of the error with additional details.
func (e *AgentError) WithDetails(details map[string]any) *AgentError {
	cp := *e
	cp.Details = details
	return &cp
}

// Common error codes.
const (
	// Retryable errors
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeRateLimit      = "RATE_LIMIT"
	ErrCodeServiceUnavail = "SERVICE_UNAVAILABLE"
	ErrCodeTemporary      = "TEMPORARY_FAILURE"

	// Per-call errors surfaced to the model
	ErrCodeToolNotFound    = "TOOL_NOT_FOUND"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeDuplicateCall   = "DUPLICATE_CALL"
	ErrCodeActionFailed    = "ACTION_FAILED"
	ErrCodeProviderError   = "PROVIDER_ERROR"
	ErrCodeRoundLimit      = "ROUND_LIMIT_EXCEEDED"
	ErrCodeEmptyAnswer     = "EMPTY_ANSWER"
	ErrCodeNoValidTicket   = "NO_VALID_TICKET"
	ErrCodeConsumeFailed   = "CONSUME_FAILED"
	ErrCodeContentFiltered = "CONTENT_FILTERED"

	// Fatal errors
	ErrCodeAuthFailed  = "AUTH_FAILED"
	ErrCodeSystemError = "SYSTEM_ERROR"
)

// Predefined errors for common scenarios. Use errors.Is to match them.
var (
	ErrRoundLimitExceeded = New(KindPipeline, ErrCodeRoundLimit,
		"unable to complete request within round limit", status.ErrorSeverityFatal)

	ErrEmptyAnswer = New(KindPipeline, ErrCodeEmptyAnswer,
		"model returned an empty answer", status.ErrorSeverityFatal)

	ErrNoValidTicket = New(KindAdmission, ErrCodeNoValidTicket,
		"no valid ticket for handle", status.ErrorSeveritySkippable)

	ErrContentFiltered = New(KindTransport, ErrCodeContentFiltered,
		"completion was blocked by the provider content filter", status.ErrorSeverityFatal)

	ErrRateLimit = New(KindTransport, ErrCodeRateLimit,
		"rate limit exceeded", status.ErrorSeverityRetryable)

	ErrServiceUnavailable = New(KindTransport, ErrCodeServiceUnavail,
		"service temporarily unavailable", status.ErrorSeverityRetryable)
)

// HTTPStatusError is returned by HTTP collaborators for non-2xx responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Classifier classifies errors into severity levels.
type Classifier struct {
	rules []ClassificationRule
}

// ClassificationRule defines a rule for classifying errors.
type ClassificationRule struct {
	Match    func(error) bool
	Severity status.ErrorSeverity
}

// NewClassifier creates a new error classifier with default rules.
func NewClassifier() *Classifier {
	c := &Classifier{}
	c.addDefaultRules()
	return c
}

func (c *Classifier) addDefaultRules() {
	// Cancellation ends the run
	c.rules = append(c.rules, ClassificationRule{
		Match: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		Severity: status.ErrorSeverityFatal,
	})

	c.rules = append(c.rules, ClassificationRule{
		Match: func(err error) bool {
			if errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			var netErr net.Error
			return errors.As(err, &netErr) && netErr.Timeout()
		},
		Severity: status.ErrorSeverityRetryable,
	})

	c.rules = append(c.rules, ClassificationRule{
		Match: func(err error) bool {
			var he *HTTPStatusError
			if !errors.As(err, &he) {
				return false
			}
			return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= http.StatusInternalServerError
		},
		Severity: status.ErrorSeverityRetryable,
	})

	// Remaining 4xx are caller mistakes; repeating the request will not help
	c.rules = append(c.rules, ClassificationRule{
		Match: func(err error) bool {
			var he *HTTPStatusError
			return errors.As(err, &he) && he.StatusCode >= 400 && he.StatusCode < 500
		},
		Severity: status.ErrorSeverityFatal,
	})
}

// AddRule adds a classification rule.
func (c *Classifier) AddRule(rule ClassificationRule) {
	c.rules = append(c.rules, rule)
}

// Classify determines the severity of an error.
func (c *Classifier) Classify(err error) status.ErrorSeverity {
	if err == nil {
		return ""
	}

	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Severity
	}

	for _, rule := range c.rules {
		if rule.Match(err) {
			return rule.Severity
		}
	}

	// Unknown transport failures get another attempt
	return status.ErrorSeverityRetryable
}

// Wrap wraps an error with a code and severity.
func Wrap(err error, kind Kind, code, message string, severity status.ErrorSeverity) *AgentError {
	return &AgentError{
		Code:     code,
		Kind:     kind,
		Message:  message,
		Severity: severity,
		Cause:    err,
	}
}

// WrapTransport wraps a collaborator call failure.
func WrapTransport(err error, message string) *AgentError {
	return Wrap(err, KindTransport, ErrCodeProviderError, message, status.ErrorSeveritySkippable)
}

// WrapAdmission wraps a ticket check or consume failure.
func WrapAdmission(err error, message string) *AgentError {
	return Wrap(err, KindAdmission, ErrCodeConsumeFailed, message, status.ErrorSeveritySkippable)
}

// WrapFatal wraps an error as fatal.
func WrapFatal(err error, message string) *AgentError {
	return Wrap(err, KindPipeline, ErrCodeSystemError, message, status.ErrorSeverityFatal)
}

// KindOf returns the kind of err, or KindPipeline for foreign errors.
func KindOf(err error) Kind {
	var ae *AgentError
	if errors.As(err, &ae) && ae.Kind != "" {
		return ae.Kind
	}
	return KindPipeline
}
