package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/janhq/mention-agent/internal/app"
	"github.com/janhq/mention-agent/internal/config"
	"github.com/janhq/mention-agent/internal/domain/action"
	"github.com/janhq/mention-agent/internal/domain/notification"
	"github.com/janhq/mention-agent/internal/infrastructure/bluesky"
	"github.com/janhq/mention-agent/internal/infrastructure/logger"
	"github.com/janhq/mention-agent/internal/infrastructure/observability"
	"github.com/janhq/mention-agent/internal/interfaces/httpserver"
)

// Application runs the notification processor next to the HTTP surface.
type Application struct {
	httpServer *httpserver.HTTPServer
	processor  *notification.Processor
	refresher  *bluesky.SessionRefresher
	log        zerolog.Logger
}

func NewApplication(
	httpServer *httpserver.HTTPServer,
	processor *notification.Processor,
	refresher *bluesky.SessionRefresher,
	log zerolog.Logger,
) *Application {
	return &Application{
		httpServer: httpServer,
		processor:  processor,
		refresher:  refresher,
		log:        log,
	}
}

// Start blocks until ctx is cancelled or a component fails.
func (a *Application) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.httpServer.Run(ctx) })
	g.Go(func() error { return a.processor.Run(ctx) })
	g.Go(func() error { return a.refresher.Run(ctx) })
	return g.Wait()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	prompts, err := config.LoadPromptsFrom(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load prompts")
	}

	if !cfg.HasBlueskyCredentials() {
		log.Fatal().Msg("BSKY_HANDLE and BSKY_APP_PASSWORD are required")
	}
	bsky := app.NewBluesky(cfg, log)
	if err := bsky.Login(ctx); err != nil {
		log.Fatal().Err(err).Msg("bluesky login")
	}

	storage, err := app.NewStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize storage")
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Error().Err(err).Msg("close storage")
		}
	}()

	wallet := app.NewWallet(cfg, log)
	registry, err := app.NewRegistry(cfg, wallet)
	if err != nil {
		log.Fatal().Err(err).Msg("build action registry")
	}
	dispatchers := app.NewDispatchers(cfg, registry, log)

	gate, err := app.NewGate(cfg, dispatchers, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build admission gate")
	}

	orchestrator := app.NewOrchestrator(cfg, app.NewProvider(cfg, log), dispatchers, log)

	processor, err := app.NewProcessor(cfg, prompts, app.ProcessorInputs{
		Bluesky:      bsky,
		Gate:         gate,
		Conversation: orchestrator,
		Storage:      storage,
		Redactor:     app.NewRedactor(cfg),
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build notification processor")
	}

	refresher := bluesky.NewSessionRefresher(bsky, cfg.BskySessionRefreshCron, log)
	httpServer := httpserver.New(cfg, log, processor, storage.Checks...)
	application := NewApplication(httpServer, processor, refresher, log)

	handle, _ := bsky.Identity()
	log.Info().
		Str("handle", handle).
		Str("admission_policy", gate.Policy()).
		Strs("tools", registry.Names(action.ScopeModel)).
		Bool("dry_run", cfg.DryRun).
		Msg("mention agent starting")

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
