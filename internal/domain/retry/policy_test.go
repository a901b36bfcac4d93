package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/janhq/mention-agent/internal/domain/retry"
	"github.com/janhq/mention-agent/internal/domain/status"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestPolicy_CalculateDelay(t *testing.T) {
	tests := []struct {
		name        string
		policy      retry.Policy
		attempt     int
		expectedMin time.Duration
		expectedMax time.Duration
	}{
		{
			name: "fixed backoff - attempt 3",
			policy: retry.Policy{
				BackoffStrategy: retry.BackoffFixed,
				InitialDelay:    100 * time.Millisecond,
				MaxDelay:        1 * time.Second,
			},
			attempt:     3,
			expectedMin: 100 * time.Millisecond,
			expectedMax: 100 * time.Millisecond,
		},
		{
			name: "linear backoff - attempt 3",
			policy: retry.Policy{
				BackoffStrategy: retry.BackoffLinear,
				InitialDelay:    100 * time.Millisecond,
				MaxDelay:        1 * time.Second,
			},
			attempt:     3,
			expectedMin: 300 * time.Millisecond,
			expectedMax: 300 * time.Millisecond,
		},
		{
			name: "exponential backoff - attempt 3",
			policy: retry.Policy{
				BackoffStrategy: retry.BackoffExponential,
				InitialDelay:    100 * time.Millisecond,
				MaxDelay:        10 * time.Second,
			},
			attempt:     3,
			expectedMin: 400 * time.Millisecond,
			expectedMax: 400 * time.Millisecond,
		},
		{
			name: "respects max delay",
			policy: retry.Policy{
				BackoffStrategy: retry.BackoffExponential,
				InitialDelay:    100 * time.Millisecond,
				MaxDelay:        200 * time.Millisecond,
			},
			attempt:     10,
			expectedMin: 200 * time.Millisecond,
			expectedMax: 200 * time.Millisecond,
		},
		{
			name:        "model call policy stays within jitter of the cap",
			policy:      retry.ModelCallPolicy(),
			attempt:     6,
			expectedMin: 900 * time.Millisecond,
			expectedMax: 1100 * time.Millisecond,
		},
		{
			name:        "attempt zero has no delay",
			policy:      retry.DefaultPolicy(),
			attempt:     0,
			expectedMin: 0,
			expectedMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.CalculateDelay(tt.attempt)
			if got < tt.expectedMin || got > tt.expectedMax {
				t.Errorf("Policy.CalculateDelay() = %v, want between %v and %v", got, tt.expectedMin, tt.expectedMax)
			}
		})
	}
}

func TestModelCallPolicy_MaxAttempts(t *testing.T) {
	policy := retry.ModelCallPolicy()
	if got := policy.MaxAttempts(); got != 3 {
		t.Errorf("Policy.MaxAttempts() = %v, want 3", got)
	}
}

func TestPolicy_ShouldRetry(t *testing.T) {
	policy := retry.Policy{MaxRetries: 2}

	tests := []struct {
		name     string
		attempt  int
		severity status.ErrorSeverity
		expected bool
	}{
		{"first failure retryable", 0, status.ErrorSeverityRetryable, true},
		{"second failure retryable", 1, status.ErrorSeverityRetryable, true},
		{"budget exhausted", 2, status.ErrorSeverityRetryable, false},
		{"fatal never retried", 0, status.ErrorSeverityFatal, false},
		{"skippable never retried", 0, status.ErrorSeveritySkippable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.ShouldRetry(tt.attempt, tt.severity); got != tt.expected {
				t.Errorf("Policy.ShouldRetry() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestExecutor_StopsAfterMaxAttempts(t *testing.T) {
	var attempts int
	var retries []int
	executor := retry.NewExecutor(retry.ModelCallPolicy(),
		retry.WithSleep(noSleep),
		retry.WithOnRetry(func(attempt int, _ time.Duration, _ error) {
			retries = append(retries, attempt)
		}),
	)

	want := errors.New("upstream unavailable")
	err := executor.Execute(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		return want
	})

	if !errors.Is(err, want) {
		t.Fatalf("Execute() error = %v, want %v", err, want)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("retries = %v, want [1 2]", retries)
	}
}

func TestExecutor_SucceedsAfterTransientFailure(t *testing.T) {
	executor := retry.NewExecutor(retry.ModelCallPolicy(), retry.WithSleep(noSleep))

	got, err := retry.Do(context.Background(), executor, func(ctx context.Context, attempt int) (string, error) {
		if attempt == 0 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("Do() unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("Do() = %q, want %q", got, "ok")
	}
}

func TestExecutor_ClassifierStopsFatalErrors(t *testing.T) {
	var attempts int
	executor := retry.NewExecutor(retry.ModelCallPolicy(),
		retry.WithSleep(noSleep),
		retry.WithClassifier(func(error) status.ErrorSeverity { return status.ErrorSeverityFatal }),
	)

	_ = executor.Execute(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		return errors.New("bad request")
	})

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestExecutor_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := retry.NewExecutor(retry.DefaultPolicy())
	err := executor.Execute(ctx, func(ctx context.Context, attempt int) error {
		t.Fatal("function must not run on a cancelled context")
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want %v", err, context.Canceled)
	}
}
