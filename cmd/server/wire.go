//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/janhq/mention-agent/internal/app"
	"github.com/janhq/mention-agent/internal/config"
	"github.com/janhq/mention-agent/internal/domain/admission"
	"github.com/janhq/mention-agent/internal/domain/conversation"
	"github.com/janhq/mention-agent/internal/domain/notification"
	"github.com/janhq/mention-agent/internal/infrastructure/bluesky"
	"github.com/janhq/mention-agent/internal/infrastructure/logger"
	"github.com/janhq/mention-agent/internal/interfaces/httpserver"
)

var agentSet = wire.NewSet(
	app.NewWallet,
	app.NewRegistry,
	app.NewDispatchers,
	app.NewGate,
	app.NewProvider,
	app.NewOrchestrator,
	app.NewRedactor,
	newLoggedInBluesky,
	newProcessorInputs,
	newProcessor,
	newSessionRefresher,
	newHTTPServer,
	wire.Bind(new(notification.Conversation), new(*conversation.Orchestrator)),
)

// BuildApplication assembles the agent with Wire. The manual wiring in
// server.go is what main uses.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		config.LoadPromptsFrom,
		app.NewStorage,
		agentSet,
		NewApplication,
	)
	return nil, nil
}

func newLoggedInBluesky(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*bluesky.Client, error) {
	client := app.NewBluesky(cfg, log)
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func newProcessorInputs(
	bsky *bluesky.Client,
	gate admission.Gate,
	conv notification.Conversation,
	storage *app.Storage,
	redactor *logger.Redactor,
) app.ProcessorInputs {
	return app.ProcessorInputs{
		Bluesky:      bsky,
		Gate:         gate,
		Conversation: conv,
		Storage:      storage,
		Redactor:     redactor,
	}
}

func newProcessor(cfg *config.Config, prompts config.Prompts, in app.ProcessorInputs, log zerolog.Logger) (*notification.Processor, error) {
	return app.NewProcessor(cfg, prompts, in, log)
}

func newSessionRefresher(cfg *config.Config, bsky *bluesky.Client, log zerolog.Logger) *bluesky.SessionRefresher {
	return bluesky.NewSessionRefresher(bsky, cfg.BskySessionRefreshCron, log)
}

func newHTTPServer(cfg *config.Config, log zerolog.Logger, processor *notification.Processor, storage *app.Storage) *httpserver.HTTPServer {
	return httpserver.New(cfg, log, processor, storage.Checks...)
}
