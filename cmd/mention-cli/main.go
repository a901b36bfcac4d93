package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/janhq/mention-agent/internal/config"
	"github.com/janhq/mention-agent/internal/infrastructure/logger"
)

var version = "0.1.0"

var (
	dryRun  bool
	envFile string

	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mention-cli",
	Short: "Operator tools for the Bluesky mention agent",
	Long: `mention-cli drives the mention agent's components by hand.

Examples:
  # Talk to the agent as a Bluesky user, against an in-memory wallet
  mention-cli chat --as alice.bsky.social --dry-run

  # Print the tool definitions the model sees
  mention-cli tools

  # Show the bot account's home timeline
  mention-cli timeline --limit 10

  # Run a single notification pass without posting
  mention-cli pass --dry-run`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(passCmd)

	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Use an in-memory wallet and never post or mark notifications seen")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load if present")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	parsed, err := config.Parse()
	if err != nil {
		return err
	}
	if dryRun {
		parsed.DryRun = true
	}
	if err := parsed.Validate(); err != nil {
		return err
	}

	cfg = parsed
	log = logger.NewWithWriter(cfg, cmd.ErrOrStderr())
	return nil
}
