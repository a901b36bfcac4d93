// Package retry defines retry policies and backoff strategies.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/janhq/mention-agent/internal/domain/status"
)

// Policy defines a retry strategy. MaxRetries counts retries after the first
// attempt, so a policy with MaxRetries 2 makes at most 3 attempts.
type Policy struct {
	MaxRetries      int           `json:"max_retries"`
	InitialDelay    time.Duration `json:"initial_delay"`
	MaxDelay        time.Duration `json:"max_delay"`
	BackoffStrategy BackoffType   `json:"backoff_strategy"`
	JitterFactor    float64       `json:"jitter_factor"` // 0.0-1.0
}

// BackoffType identifies the backoff strategy.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"       // Same delay each time
	BackoffLinear      BackoffType = "linear"      // Delay increases linearly
	BackoffExponential BackoffType = "exponential" // Delay doubles each time
)

// DefaultPolicy returns a general purpose retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		BackoffStrategy: BackoffExponential,
		JitterFactor:    0.25,
	}
}

// ModelCallPolicy is applied to language model calls: 3 attempts, 100ms
// base delay doubling up to 1s.
func ModelCallPolicy() Policy {
	return Policy{
		MaxRetries:      2,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        1 * time.Second,
		BackoffStrategy: BackoffExponential,
		JitterFactor:    0.1,
	}
}

// NoRetryPolicy returns a policy that never retries.
func NoRetryPolicy() Policy {
	return Policy{}
}

// MaxAttempts returns the total number of attempts the policy allows.
func (p *Policy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// CalculateDelay calculates the delay before retry number attempt (1-based).
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	var delay time.Duration

	switch p.BackoffStrategy {
	case BackoffFixed:
		delay = p.InitialDelay
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = p.InitialDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	default:
		delay = p.InitialDelay
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.JitterFactor > 0 {
		jitter := float64(delay) * p.JitterFactor * (rand.Float64()*2 - 1) // -jitter to +jitter
		delay = time.Duration(float64(delay) + jitter)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

// ShouldRetry determines if another attempt is allowed after attempt
// (0-based) failed with the given severity.
func (p *Policy) ShouldRetry(attempt int, severity status.ErrorSeverity) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	return severity.IsRetryable()
}

// Executor runs functions under a retry policy.
type Executor struct {
	policy   Policy
	classify func(error) status.ErrorSeverity
	onRetry  func(attempt int, delay time.Duration, err error)
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithClassifier stops retrying as soon as classify reports a non-retryable
// severity. Without a classifier every error is retried.
func WithClassifier(classify func(error) status.ErrorSeverity) Option {
	return func(e *Executor) {
		e.classify = classify
	}
}

// WithOnRetry registers a hook invoked before each retry.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(e *Executor) {
		e.onRetry = fn
	}
}

// WithSleep replaces the timer based wait, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		e.sleep = fn
	}
}

// NewExecutor creates a new retry executor with the given policy.
func NewExecutor(policy Policy, opts ...Option) *Executor {
	e := &Executor{
		policy: policy,
		classify: func(error) status.ErrorSeverity {
			return status.ErrorSeverityRetryable
		},
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func(ctx context.Context, attempt int) error

// Execute runs the function with retries according to the policy.
func (e *Executor) Execute(ctx context.Context, fn RetryableFunc) error {
	_, err := Do(ctx, e, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, fn(ctx, attempt)
	})
	return err
}

// Do runs fn with retries and returns its result. The last error is
// returned once the policy is exhausted or the error is not retryable.
func Do[T any](ctx context.Context, e *Executor, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= e.policy.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		r, err := fn(ctx, attempt)
		if err == nil {
			return r, nil
		}
		lastErr = err

		if !e.policy.ShouldRetry(attempt, e.classify(err)) {
			break
		}

		delay := e.policy.CalculateDelay(attempt + 1)
		if e.onRetry != nil {
			e.onRetry(attempt+1, delay, err)
		}
		if delay > 0 {
			if err := e.sleep(ctx, delay); err != nil {
				return zero, err
			}
		}
	}

	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
