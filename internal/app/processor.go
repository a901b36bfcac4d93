package app

import (
	"github.com/rs/zerolog"

	"github.com/janhq/mention-agent/internal/config"
	"github.com/janhq/mention-agent/internal/domain/admission"
	"github.com/janhq/mention-agent/internal/domain/notification"
	"github.com/janhq/mention-agent/internal/infrastructure/bluesky"
	"github.com/janhq/mention-agent/internal/infrastructure/logger"
)

// ProcessorInputs groups what NewProcessor needs beyond configuration.
type ProcessorInputs struct {
	Bluesky      *bluesky.Client
	Gate         admission.Gate
	Conversation notification.Conversation
	Storage      *Storage
	Redactor     *logger.Redactor
}

// NewProcessor wires the notification processor. In dry run mode the feed
// is never marked seen and replies are only logged.
func NewProcessor(cfg *config.Config, prompts config.Prompts, in ProcessorInputs, log zerolog.Logger) (*notification.Processor, error) {
	consumePolicy, err := admission.ParseConsumeFailurePolicy(cfg.ConsumeFailurePolicy)
	if err != nil {
		return nil, err
	}

	var (
		source notification.Source = in.Bluesky
		poster notification.Poster = in.Bluesky
	)
	if cfg.DryRun {
		source = ReadOnlySource{Source: in.Bluesky}
		poster = NewDryRunPoster(in.Redactor, log)
	}

	handle, did := in.Bluesky.Identity()
	return notification.NewProcessor(notification.Dependencies{
		Source:       source,
		Poster:       poster,
		Gate:         in.Gate,
		Conversation: in.Conversation,
		History:      in.Storage.History,
		Watermark:    in.Storage.Watermark,
		Lock:         in.Storage.Lock,
		Redactor:     in.Redactor,
	}, notification.Config{
		BotHandle:      handle,
		BotDID:         did,
		SystemPrompt:   prompts.SystemPrompt,
		PurchaseReply:  prompts.PurchaseReply,
		PollInterval:   cfg.PollInterval,
		ConsumeFailure: consumePolicy,
	}, log), nil
}
