// Package app assembles the agent's components from configuration. It is
// shared by the server and the CLI.
package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/janhq/mention-agent/internal/config"
	"github.com/janhq/mention-agent/internal/domain/action"
	"github.com/janhq/mention-agent/internal/domain/admission"
	"github.com/janhq/mention-agent/internal/domain/conversation"
	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/llm"
	"github.com/janhq/mention-agent/internal/domain/retry"
	"github.com/janhq/mention-agent/internal/domain/ticket"
	"github.com/janhq/mention-agent/internal/infrastructure/bluesky"
	"github.com/janhq/mention-agent/internal/infrastructure/llmprovider"
	"github.com/janhq/mention-agent/internal/infrastructure/logger"
	"github.com/janhq/mention-agent/internal/infrastructure/metrics"
	"github.com/janhq/mention-agent/internal/infrastructure/walletapi"
)

// DryRunAddress is the address reported by the in-memory wallet.
const DryRunAddress = "0x00000000000000000000000000000000000d7e57"

// NewWallet returns the wallet gateway client, or a funded in-memory wallet
// when cfg.DryRun is set.
func NewWallet(cfg *config.Config, log zerolog.Logger) ticket.Wallet {
	if cfg.DryRun {
		log.Warn().Msg("dry run: using in-memory wallet")
		wallet := ticket.NewMemoryWallet(DryRunAddress, cfg.NetworkID)
		wallet.SetBalance("eth", decimal.RequireFromString("0.25"))
		return wallet
	}
	return walletapi.NewClient(walletapi.Config{
		BaseURL:   cfg.WalletAPIURL,
		APIKey:    cfg.WalletAPIKey,
		Address:   cfg.WalletAddress,
		NetworkID: cfg.NetworkID,
		TxTimeout: cfg.WalletTxTimeout,
	}, log)
}

// NewRegistry registers the ticket and wallet actions.
func NewRegistry(cfg *config.Config, wallet ticket.Wallet) (*action.Registry, error) {
	system := ticket.NewSystem(wallet, cfg.TicketContractAddress)
	registry := action.NewRegistry()
	for _, a := range ticket.Actions(system, wallet, ticket.ActionOptions{EnableWithdraw: cfg.EnableWithdrawAction}) {
		if err := registry.Register(a); err != nil {
			return nil, fmt.Errorf("register action: %w", err)
		}
	}
	return registry, nil
}

// Dispatchers are the two views over the registry.
type Dispatchers struct {
	Model    *action.Dispatcher
	Internal *action.Dispatcher
}

// NewDispatchers creates the model-facing and gate-facing dispatchers.
func NewDispatchers(cfg *config.Config, registry *action.Registry, log zerolog.Logger) Dispatchers {
	return Dispatchers{
		Model:    action.NewDispatcher(registry, action.ScopeModel, cfg.ToolTimeout, log),
		Internal: action.NewDispatcher(registry, action.ScopeInternal, cfg.ToolTimeout, log),
	}
}

// NewGate builds the configured admission gate.
func NewGate(cfg *config.Config, dispatchers Dispatchers, log zerolog.Logger) (admission.Gate, error) {
	switch cfg.AdmissionPolicy {
	case config.AdmissionPolicyTicket:
		return admission.NewTicketGate(dispatchers.Internal, log), nil
	case config.AdmissionPolicyAllowlist:
		return admission.NewAllowlistGate(cfg.AllowedHandles()), nil
	default:
		return nil, fmt.Errorf("unknown admission policy %q", cfg.AdmissionPolicy)
	}
}

// NewProvider returns the model client wrapped in the retry decorator.
func NewProvider(cfg *config.Config, log zerolog.Logger) llm.Provider {
	client := llmprovider.NewClient(llmprovider.Config{
		BaseURL:        cfg.LLMAPIURL,
		APIKey:         cfg.LLMAPIKey,
		Model:          cfg.LLMModel,
		Timeout:        cfg.LLMTimeout,
		RateLimitRPS:   cfg.LLMRateLimitRPS,
		RateLimitBurst: cfg.LLMRateLimitBurst,
	}, log)

	classifier := agentErrors.NewClassifier()
	retryLog := log.With().Str("component", "model_retry").Logger()
	executor := retry.NewExecutor(retry.ModelCallPolicy(),
		retry.WithClassifier(classifier.Classify),
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			metrics.RecordModelRetry()
			retryLog.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying model call")
		}),
	)
	return llm.NewRetryingProvider(client, executor)
}

// NewOrchestrator creates the conversation orchestrator.
func NewOrchestrator(cfg *config.Config, provider llm.Provider, dispatchers Dispatchers, log zerolog.Logger) *conversation.Orchestrator {
	return conversation.New(provider, dispatchers.Model, conversation.Options{
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxRounds:   cfg.MaxConversationRounds,
	}, log)
}

// NewBluesky creates the Bluesky client. Call Login before use.
func NewBluesky(cfg *config.Config, log zerolog.Logger) *bluesky.Client {
	return bluesky.NewClient(bluesky.Config{
		ServiceURL:  cfg.BskyServiceURL,
		Identifier:  cfg.BskyHandle,
		AppPassword: cfg.BskyAppPassword,
	}, log)
}

// NewRedactor creates the log redactor for user content.
func NewRedactor(cfg *config.Config) *logger.Redactor {
	return logger.NewRedactor(cfg.PIILevel, cfg.ServiceName)
}
