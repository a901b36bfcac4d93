package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janhq/mention-agent/internal/app"
	"github.com/janhq/mention-agent/internal/config"
)

var passCmd = &cobra.Command{
	Use:   "pass",
	Short: "Run one notification pass and print its report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if !cfg.HasBlueskyCredentials() {
			return fmt.Errorf("BSKY_HANDLE and BSKY_APP_PASSWORD are required")
		}

		prompts, err := config.LoadPromptsFrom(cfg)
		if err != nil {
			return err
		}

		bsky := app.NewBluesky(cfg, log)
		if err := bsky.Login(ctx); err != nil {
			return err
		}

		storage, err := app.NewStorage(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer storage.Close()

		registry, err := app.NewRegistry(cfg, app.NewWallet(cfg, log))
		if err != nil {
			return err
		}
		dispatchers := app.NewDispatchers(cfg, registry, log)
		gate, err := app.NewGate(cfg, dispatchers, log)
		if err != nil {
			return err
		}

		processor, err := app.NewProcessor(cfg, prompts, app.ProcessorInputs{
			Bluesky:      bsky,
			Gate:         gate,
			Conversation: app.NewOrchestrator(cfg, app.NewProvider(cfg, log), dispatchers, log),
			Storage:      storage,
			Redactor:     app.NewRedactor(cfg),
		}, log)
		if err != nil {
			return err
		}

		report, passErr := processor.RunPass(ctx)
		if report != nil {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}
		return passErr
	},
}
