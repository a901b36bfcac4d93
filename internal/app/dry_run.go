package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/mention-agent/internal/domain/notification"
	"github.com/janhq/mention-agent/internal/infrastructure/logger"
	"github.com/janhq/mention-agent/internal/utils/idgen"
)

// DryRunPoster logs replies instead of publishing them.
type DryRunPoster struct {
	redactor *logger.Redactor
	log      zerolog.Logger

	Replies []string
}

// NewDryRunPoster creates a poster that never reaches the network.
func NewDryRunPoster(redactor *logger.Redactor, log zerolog.Logger) *DryRunPoster {
	return &DryRunPoster{
		redactor: redactor,
		log:      log.With().Str("component", "dry_run_poster").Logger(),
	}
}

// Reply records text and returns a synthetic reference.
func (p *DryRunPoster) Reply(_ context.Context, parent, root notification.PostRef, text string) (notification.PostRef, error) {
	p.Replies = append(p.Replies, text)
	p.log.Info().
		Str("parent_uri", parent.URI).
		Str("root_uri", root.URI).
		Str("text", p.redactor.Text(text)).
		Msg("dry run reply")
	return notification.PostRef{URI: "dry-run://" + idgen.RunID()}, nil
}

// ReadOnlySource reads the feed but never marks it seen.
type ReadOnlySource struct {
	notification.Source
}

// MarkSeen does nothing.
func (ReadOnlySource) MarkSeen(context.Context, time.Time) error {
	return nil
}

var (
	_ notification.Poster = (*DryRunPoster)(nil)
	_ notification.Source = ReadOnlySource{}
)
