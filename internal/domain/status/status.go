// Package status defines the pipeline stages and outcomes shared by the
// notification processor and its collaborators.
package status

import "errors"

// Stage is a step of the per-notification pipeline.
type Stage string

const (
	StageReceived  Stage = "received"
	StageFiltered  Stage = "filtered"
	StageDeduped   Stage = "deduped"
	StageAdmitted  Stage = "admitted"
	StageConversed Stage = "conversed"
	StageConsumed  Stage = "consumed"
	StageReplied   Stage = "replied"
	StageDone      Stage = "done"
)

// ErrInvalidTransition is returned when a stage transition is not allowed.
var ErrInvalidTransition = errors.New("invalid stage transition")

// ValidTransitions defines the allowed stage order. Every stage may end the
// pipeline early by moving to StageDone.
var ValidTransitions = map[Stage][]Stage{
	StageReceived:  {StageFiltered, StageDone},
	StageFiltered:  {StageDeduped, StageDone},
	StageDeduped:   {StageAdmitted, StageReplied, StageDone}, // denied mentions get the purchase reply
	StageAdmitted:  {StageConversed, StageDone},
	StageConversed: {StageConsumed, StageReplied, StageDone},
	StageConsumed:  {StageReplied, StageDone},
	StageReplied:   {StageDone},
	StageDone:      {},
}

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// CanTransitionTo checks if moving from s to target is allowed.
func (s Stage) CanTransitionTo(target Stage) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTo returns target when the move is valid.
func (s Stage) TransitionTo(target Stage) (Stage, error) {
	if !s.CanTransitionTo(target) {
		return s, ErrInvalidTransition
	}
	return target, nil
}

// Outcome is the terminal result of processing one notification.
type Outcome string

const (
	OutcomeReplied          Outcome = "replied"
	OutcomePurchasePrompt   Outcome = "purchase_prompt"
	OutcomeSkippedFiltered  Outcome = "skipped_filtered"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeSkippedDenied    Outcome = "skipped_denied"
	OutcomeWithheld         Outcome = "withheld"
	OutcomeFailed           Outcome = "failed"
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// Posted reports whether the outcome resulted in a reply being posted.
func (o Outcome) Posted() bool {
	return o == OutcomeReplied || o == OutcomePurchasePrompt
}

// IsSkip reports whether the notification was intentionally not answered.
func (o Outcome) IsSkip() bool {
	return o == OutcomeSkippedFiltered || o == OutcomeSkippedDuplicate || o == OutcomeSkippedDenied
}

// ErrorSeverity indicates how an error should be handled.
type ErrorSeverity string

const (
	ErrorSeverityRetryable ErrorSeverity = "retryable" // Retry with backoff
	ErrorSeverityFallback  ErrorSeverity = "fallback"  // Degrade and continue
	ErrorSeveritySkippable ErrorSeverity = "skippable" // Skip the notification, continue the pass
	ErrorSeverityFatal     ErrorSeverity = "fatal"     // Fail the run
)

// String returns the string representation of the error severity.
func (e ErrorSeverity) String() string {
	return string(e)
}

// IsRetryable returns true if the error can be retried.
func (e ErrorSeverity) IsRetryable() bool {
	return e == ErrorSeverityRetryable
}

// IsFatal returns true if the error should fail the run.
func (e ErrorSeverity) IsFatal() bool {
	return e == ErrorSeverityFatal
}
