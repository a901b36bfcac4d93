package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/janhq/mention-agent/internal/app"
	"github.com/janhq/mention-agent/internal/infrastructure/bluesky"
)

var timelineLimit int

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show the bot account's home timeline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cfg.HasBlueskyCredentials() {
			return fmt.Errorf("BSKY_HANDLE and BSKY_APP_PASSWORD are required")
		}
		client := app.NewBluesky(cfg, log)
		if err := client.Login(cmd.Context()); err != nil {
			return err
		}
		posts, err := client.Timeline(cmd.Context(), timelineLimit)
		if err != nil {
			return err
		}
		writeTimeline(cmd.OutOrStdout(), posts)
		return nil
	},
}

func init() {
	timelineCmd.Flags().IntVar(&timelineLimit, "limit", 20, "Number of posts to show, 1 to 100")
}

func writeTimeline(out io.Writer, posts []bluesky.TimelinePost) {
	if len(posts) == 0 {
		fmt.Fprintln(out, "timeline is empty")
		return
	}
	for _, p := range posts {
		text := strings.ReplaceAll(p.Text, "\n", " ")
		fmt.Fprintf(out, "%s  @%s: %s\n", p.IndexedAt.Local().Format(time.DateTime), p.Author, text)
	}
}
