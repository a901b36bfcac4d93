package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/janhq/mention-agent/internal/app"
	"github.com/janhq/mention-agent/internal/config"
	"github.com/janhq/mention-agent/internal/domain/admission"
	"github.com/janhq/mention-agent/internal/domain/notification"
)

var (
	chatIdentity  string
	chatShowTools bool
	chatGate      bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent from the terminal",
	Long: `Start an interactive session. Each line is answered as if it were a
Bluesky mention from --as. Type "exit" or send EOF to quit.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatIdentity, "as", "tester.bsky.social", "Bluesky handle the messages come from")
	chatCmd.Flags().BoolVar(&chatShowTools, "show-tools", false, "Print every tool call and its result")
	chatCmd.Flags().BoolVar(&chatGate, "gate", false, "Apply the admission gate before answering")
}

func runChat(cmd *cobra.Command, _ []string) error {
	prompts, err := config.LoadPromptsFrom(cfg)
	if err != nil {
		return err
	}

	registry, err := app.NewRegistry(cfg, app.NewWallet(cfg, log))
	if err != nil {
		return err
	}
	dispatchers := app.NewDispatchers(cfg, registry, log)
	orchestrator := app.NewOrchestrator(cfg, app.NewProvider(cfg, log), dispatchers, log)

	session := chatSession{
		conversation: orchestrator,
		systemPrompt: prompts.SystemPrompt,
		identity:     chatIdentity,
		showTools:    chatShowTools,
	}
	if chatGate {
		gate, err := app.NewGate(cfg, dispatchers, log)
		if err != nil {
			return err
		}
		session.gate = gate
		session.purchaseReply = prompts.PurchaseReply
	}
	return session.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
}

type chatSession struct {
	conversation  notification.Conversation
	gate          admission.Gate
	systemPrompt  string
	purchaseReply string
	identity      string
	showTools     bool
}

func (s chatSession) run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(out, "chatting as @%s, type exit to quit\n> ", s.identity)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "exit" || line == "quit":
			return nil
		default:
			if err := s.answer(ctx, line, out); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func (s chatSession) answer(ctx context.Context, text string, out io.Writer) error {
	if s.gate != nil {
		decision, err := s.gate.Check(ctx, s.identity)
		if err != nil {
			return fmt.Errorf("admission check: %w", err)
		}
		if !decision.Admitted() {
			if decision.OnDeny == admission.DenySkip {
				fmt.Fprintln(out, "(not admitted, the bot would stay silent)")
				return nil
			}
			fmt.Fprintln(out, s.purchaseReply)
			return nil
		}
	}

	transcript, err := s.conversation.RunDetailed(ctx, s.systemPrompt, s.identity, text)
	if s.showTools && transcript != nil {
		for _, exec := range transcript.Executions {
			fmt.Fprintf(out, "  [%s] %s %s -> %s\n", exec.Call.ID, exec.Call.Name, string(exec.Call.Arguments), exec.Result.Content())
		}
	}
	if err != nil {
		return err
	}

	if s.gate != nil {
		if err := s.gate.Consume(ctx, s.identity); err != nil {
			fmt.Fprintf(out, "(consume failed: %v)\n", err)
		}
	}
	fmt.Fprintln(out, transcript.Answer)
	return nil
}
