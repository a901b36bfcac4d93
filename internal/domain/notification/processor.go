package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/janhq/mention-agent/internal/domain/admission"
	"github.com/janhq/mention-agent/internal/domain/conversation"
	"github.com/janhq/mention-agent/internal/domain/status"
	"github.com/janhq/mention-agent/internal/infrastructure/logger"
	"github.com/janhq/mention-agent/internal/infrastructure/metrics"
	"github.com/janhq/mention-agent/internal/infrastructure/observability"
	"github.com/janhq/mention-agent/internal/utils/idgen"
)

// DefaultPollInterval is the delay between passes.
const DefaultPollInterval = 30 * time.Second

// Conversation answers one mention.
type Conversation interface {
	RunDetailed(ctx context.Context, systemPrompt, identity, text string) (*conversation.Transcript, error)
}

// Config holds the processor settings.
type Config struct {
	BotHandle      string
	BotDID         string
	SystemPrompt   string
	PurchaseReply  string
	PollInterval   time.Duration
	ConsumeFailure admission.ConsumeFailurePolicy
}

// Dependencies are the processor's collaborators. Lock and Clock are
// optional.
type Dependencies struct {
	Source       Source
	Poster       Poster
	Gate         admission.Gate
	Conversation Conversation
	History      History
	Watermark    WatermarkStore
	Lock         PassLock
	Clock        Clock
	Redactor     *logger.Redactor
}

// PassReport summarises one pass.
type PassReport struct {
	PassID    string                 `json:"pass_id"`
	StartedAt time.Time              `json:"started_at"`
	Fetched   int                    `json:"fetched"`
	Outcomes  map[status.Outcome]int `json:"outcomes"`
	Watermark time.Time              `json:"watermark"`
	Duration  time.Duration          `json:"duration"`
	Error     string                 `json:"error,omitempty"`
}

// Processor runs notification passes. Passes are sequential; Run never
// starts a pass while another is in progress.
type Processor struct {
	deps Dependencies
	cfg  Config
	log  zerolog.Logger

	passMu sync.Mutex

	mu   sync.RWMutex
	last *PassReport
}

// NewProcessor creates a processor.
func NewProcessor(deps Dependencies, cfg Config, log zerolog.Logger) *Processor {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Redactor == nil {
		deps.Redactor = logger.NewRedactor(string(logger.PIILevelHashed), "")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ConsumeFailure == "" {
		cfg.ConsumeFailure = admission.ConsumeFailurePost
	}
	return &Processor{
		deps: deps,
		cfg:  cfg,
		log:  log.With().Str("component", "notification_processor").Logger(),
	}
}

// SetIdentity updates the bot account used for self and duplicate checks.
func (p *Processor) SetIdentity(handle, did string) {
	p.passMu.Lock()
	defer p.passMu.Unlock()
	p.cfg.BotHandle = handle
	p.cfg.BotDID = did
}

// Run executes a pass immediately and then every poll interval until ctx
// is cancelled. Pass errors are logged and never stop the loop.
func (p *Processor) Run(ctx context.Context) error {
	p.log.Info().Dur("poll_interval", p.cfg.PollInterval).Msg("notification processor started")
	p.runLogged(ctx)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("notification processor stopped")
			return nil
		case <-ticker.C:
			p.runLogged(ctx)
		}
	}
}

func (p *Processor) runLogged(ctx context.Context) {
	report, err := p.RunPass(ctx)
	switch {
	case errors.Is(err, ErrPassLocked):
		p.log.Debug().Msg("pass skipped, lock held elsewhere")
	case errors.Is(err, ErrPassLeaseLost):
		p.log.Warn().Msg("pass stopped early, lock lease lost")
	case err != nil:
		p.log.Error().Err(err).Msg("notification pass failed")
	default:
		p.log.Info().
			Str("pass_id", report.PassID).
			Int("fetched", report.Fetched).
			Interface("outcomes", report.Outcomes).
			Dur("duration", report.Duration).
			Msg("notification pass completed")
	}
}

// LastReport returns the report of the most recent pass, or nil.
func (p *Processor) LastReport() *PassReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	clone := *p.last
	clone.Outcomes = make(map[status.Outcome]int, len(p.last.Outcomes))
	for k, v := range p.last.Outcomes {
		clone.Outcomes[k] = v
	}
	return &clone
}

// RunPass fetches pending notifications, processes them in order and
// advances the watermark to the pass start. A failed fetch leaves the
// watermark untouched.
func (p *Processor) RunPass(ctx context.Context) (*PassReport, error) {
	p.passMu.Lock()
	defer p.passMu.Unlock()

	var lease Lease
	if p.deps.Lock != nil {
		var err error
		lease, err = p.deps.Lock.TryLock(ctx)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				p.log.Warn().Err(err).Msg("release pass lock")
			}
		}()
	}

	passStart := p.deps.Clock.Now()
	report := &PassReport{
		PassID:    idgen.PassID(),
		StartedAt: passStart,
		Outcomes:  make(map[status.Outcome]int),
	}
	ctx, span := observability.StartPassSpan(ctx, report.PassID)
	defer span.End()
	log := p.log.With().Str("pass_id", report.PassID).Logger()

	err := p.runPass(ctx, log, passStart, report, lease)
	report.Duration = p.deps.Clock.Now().Sub(passStart)
	if err != nil {
		report.Error = err.Error()
		observability.RecordError(span, err, status.ErrorSeveritySkippable.String())
		metrics.RecordPass("error", report.Duration.Seconds())
	} else {
		metrics.RecordPass("success", report.Duration.Seconds())
	}

	p.mu.Lock()
	p.last = report
	p.mu.Unlock()
	return report, err
}

func (p *Processor) runPass(ctx context.Context, log zerolog.Logger, passStart time.Time, report *PassReport, lease Lease) error {
	since, err := p.deps.Watermark.Load(ctx)
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}
	report.Watermark = since

	pending, err := p.deps.Source.ListPending(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch notifications: %w", err)
	}
	report.Fetched = len(pending)
	log.Debug().Time("since", since).Int("fetched", len(pending)).Msg("notifications fetched")

	for _, n := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if leaseLost(lease) {
			return ErrPassLeaseLost
		}
		outcome := p.processSafely(ctx, log, n)
		report.Outcomes[outcome]++
		metrics.RecordNotification(outcome.String())
	}

	if leaseLost(lease) {
		return ErrPassLeaseLost
	}
	if err := p.deps.Source.MarkSeen(ctx, passStart); err != nil {
		return fmt.Errorf("mark notifications seen: %w", err)
	}
	if err := p.deps.Watermark.Save(ctx, passStart); err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	report.Watermark = passStart
	metrics.SetWatermark(float64(passStart.Unix()))
	return nil
}

func leaseLost(lease Lease) bool {
	return lease != nil && !lease.Valid()
}

// processSafely isolates one notification: errors and panics end it with
// OutcomeFailed and never abort the pass.
func (p *Processor) processSafely(ctx context.Context, log zerolog.Logger, n Notification) (outcome status.Outcome) {
	ctx, span := observability.StartNotificationSpan(ctx, n.URI, n.Reason)
	defer span.End()

	log = log.With().
		Str("notification_uri", n.URI).
		Str("author", p.deps.Redactor.Handle(n.Author.Handle)).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("notification processing panicked")
			outcome = status.OutcomeFailed
		}
		observability.AddOutcomeEvent(span, outcome.String())
	}()

	outcome, err := p.process(ctx, log, span, n)
	if err != nil {
		log.Error().Err(err).Str("outcome", outcome.String()).Msg("notification failed")
		observability.RecordError(span, err, status.ErrorSeveritySkippable.String())
		return status.OutcomeFailed
	}
	log.Info().Str("outcome", outcome.String()).Msg("notification processed")
	return outcome
}

type pipeline struct {
	stage status.Stage
	span  trace.Span
}

func (pl *pipeline) advance(to status.Stage) {
	next, err := pl.stage.TransitionTo(to)
	if err != nil {
		panic(fmt.Sprintf("notification pipeline: %s -> %s: %v", pl.stage, to, err))
	}
	observability.AddStageTransition(pl.span, pl.stage.String(), next.String())
	pl.stage = next
}

func (p *Processor) process(ctx context.Context, log zerolog.Logger, span trace.Span, n Notification) (status.Outcome, error) {
	pl := &pipeline{stage: status.StageReceived, span: span}
	defer pl.advance(status.StageDone)

	// Filter.
	if n.IsRead || n.Reason != ReasonMention || n.Author.Is(p.cfg.BotHandle, p.cfg.BotDID) {
		return status.OutcomeSkippedFiltered, nil
	}
	pl.advance(status.StageFiltered)

	// Dedup.
	known, err := p.deps.History.Contains(ctx, n.URI)
	if err != nil {
		return status.OutcomeFailed, fmt.Errorf("check reply history: %w", err)
	}
	if known {
		return status.OutcomeSkippedDuplicate, nil
	}

	record := Record{
		NotificationURI: n.URI,
		AuthorHandle:    n.Author.Handle,
	}

	thread, err := p.deps.Source.GetThread(ctx, n.URI)
	if err != nil {
		return status.OutcomeFailed, p.remember(ctx, log, record, status.OutcomeFailed, fmt.Errorf("fetch thread: %w", err))
	}
	root := thread.Root()
	record.ThreadRootURI = root.URI
	if thread.HasReplyFrom(p.cfg.BotHandle, p.cfg.BotDID) {
		return status.OutcomeSkippedDuplicate, p.remember(ctx, log, record, status.OutcomeSkippedDuplicate, nil)
	}
	pl.advance(status.StageDeduped)

	// Gate.
	decision, err := p.deps.Gate.Check(ctx, n.Author.Handle)
	if err != nil {
		return status.OutcomeFailed, p.remember(ctx, log, record, status.OutcomeFailed, fmt.Errorf("admission check: %w", err))
	}
	if !decision.Admitted() {
		if decision.OnDeny == admission.DenySkip {
			return status.OutcomeSkippedDenied, p.remember(ctx, log, record, status.OutcomeSkippedDenied, nil)
		}
		ref, err := p.deps.Poster.Reply(ctx, n.Ref(), root, p.cfg.PurchaseReply)
		if err != nil {
			return status.OutcomeFailed, p.remember(ctx, log, record, status.OutcomeFailed, fmt.Errorf("post purchase reply: %w", err))
		}
		pl.advance(status.StageReplied)
		record.ReplyURI = ref.URI
		return status.OutcomePurchasePrompt, p.remember(ctx, log, record, status.OutcomePurchasePrompt, nil)
	}
	pl.advance(status.StageAdmitted)

	// Converse.
	transcript, err := p.deps.Conversation.RunDetailed(ctx, p.cfg.SystemPrompt, n.Author.Handle, n.Text)
	if transcript != nil {
		record.RunID = transcript.RunID
		record.Executions = transcript.Executions
	}
	if err != nil {
		return status.OutcomeFailed, p.remember(ctx, log, record, status.OutcomeFailed, fmt.Errorf("conversation: %w", err))
	}
	pl.advance(status.StageConversed)
	log.Debug().Str("run_id", transcript.RunID).Int("rounds", transcript.Rounds).
		Str("answer", p.deps.Redactor.Text(transcript.Answer)).Msg("conversation completed")

	// Consume.
	if err := p.deps.Gate.Consume(ctx, n.Author.Handle); err != nil {
		metrics.RecordConsumeFailure()
		record.ConsumeError = err.Error()
		log.Warn().Err(err).Str("policy", string(p.cfg.ConsumeFailure)).Msg("admission consume failed")
		if p.cfg.ConsumeFailure == admission.ConsumeFailureWithhold {
			return status.OutcomeWithheld, p.remember(ctx, log, record, status.OutcomeWithheld, nil)
		}
	} else {
		pl.advance(status.StageConsumed)
	}

	// Reply.
	ref, err := p.deps.Poster.Reply(ctx, n.Ref(), root, transcript.Answer)
	if err != nil {
		return status.OutcomeFailed, p.remember(ctx, log, record, status.OutcomeFailed, fmt.Errorf("post reply: %w", err))
	}
	pl.advance(status.StageReplied)
	record.ReplyURI = ref.URI
	return status.OutcomeReplied, p.remember(ctx, log, record, status.OutcomeReplied, nil)
}

// remember stores the record and returns cause. History failures are
// logged, never returned.
func (p *Processor) remember(ctx context.Context, log zerolog.Logger, record Record, outcome status.Outcome, cause error) error {
	record.Outcome = outcome
	record.CreatedAt = p.deps.Clock.Now()
	if cause != nil {
		record.Error = cause.Error()
	}
	if err := p.deps.History.Record(ctx, record); err != nil {
		log.Warn().Err(err).Str("outcome", outcome.String()).Msg("record reply history")
	}
	return cause
}
