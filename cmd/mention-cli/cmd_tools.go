package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/janhq/mention-agent/internal/app"
	"github.com/janhq/mention-agent/internal/domain/action"
)

var toolsInternal bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool definitions sent to the model as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry, err := app.NewRegistry(cfg, app.NewWallet(cfg, log))
		if err != nil {
			return err
		}
		scope := action.ScopeModel
		if toolsInternal {
			scope = action.ScopeInternal
		}
		return writeTools(cmd.OutOrStdout(), registry, scope)
	},
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsInternal, "internal", false, "Show the actions reserved for the admission gate instead")
}

func writeTools(out io.Writer, registry *action.Registry, scope action.Scope) error {
	data, err := json.MarshalIndent(registry.Tools(scope), "", "  ")
	if err != nil {
		return fmt.Errorf("encode tools: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
