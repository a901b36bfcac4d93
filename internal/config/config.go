package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Admission policies.
const (
	AdmissionPolicyTicket    = "ticket"
	AdmissionPolicyAllowlist = "allowlist"
)

// Consume failure policies.
const (
	ConsumeFailurePost     = "post"
	ConsumeFailureWithhold = "withhold"
)

// Config holds the environment driven configuration for the mention agent.
type Config struct {
	ServiceName      string        `env:"SERVICE_NAME" envDefault:"mention-agent"`
	Environment      string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort         int           `env:"HTTP_PORT" envDefault:"8090"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	PIILevel         string        `env:"PII_LEVEL" envDefault:"hashed"`
	EnableTracing    bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	TraceSampleRatio float64       `env:"OTEL_TRACE_SAMPLE_RATIO" envDefault:"1"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// DryRun swaps the wallet for an in-memory one and logs replies instead
	// of posting them.
	DryRun           bool          `env:"DRY_RUN" envDefault:"false"`

	// Bluesky
	BskyServiceURL         string `env:"BSKY_SERVICE_URL" envDefault:"https://bsky.social"`
	BskyHandle             string `env:"BSKY_HANDLE"`
	BskyAppPassword        string `env:"BSKY_APP_PASSWORD"`
	BskySessionRefreshCron string `env:"BSKY_SESSION_REFRESH_CRON" envDefault:"*/30 * * * *"`

	// Language model
	LLMAPIURL         string        `env:"LLM_API_URL" envDefault:"https://api.openai.com"`
	LLMAPIKey         string        `env:"LLM_API_KEY"`
	LLMModel          string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTemperature    float32       `env:"LLM_TEMPERATURE" envDefault:"0"`
	LLMTimeout        time.Duration `env:"LLM_TIMEOUT" envDefault:"75s"`
	LLMRateLimitRPS   float64       `env:"LLM_RATE_LIMIT_RPS" envDefault:"2"`
	LLMRateLimitBurst int           `env:"LLM_RATE_LIMIT_BURST" envDefault:"4"`

	// Conversation
	MaxConversationRounds int           `env:"MAX_CONVERSATION_ROUNDS" envDefault:"8"`
	ToolTimeout           time.Duration `env:"TOOL_TIMEOUT" envDefault:"45s"`
	PromptsFile           string        `env:"PROMPTS_FILE"`

	// Notification processor
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`

	// Admission
	AdmissionPolicy       string        `env:"ADMISSION_POLICY" envDefault:"ticket"`
	AdmissionAllowlist    []string      `env:"ADMISSION_ALLOWLIST" envSeparator:","`
	ConsumeFailurePolicy  string        `env:"ADMISSION_CONSUME_FAILURE_POLICY" envDefault:"post"`
	WalletAPIURL          string        `env:"WALLET_API_URL"`
	WalletAPIKey          string        `env:"WALLET_API_KEY"`
	WalletAddress         string        `env:"WALLET_ADDRESS"`
	NetworkID             string        `env:"NETWORK_ID" envDefault:"base-sepolia"`
	TicketContractAddress string        `env:"TICKET_CONTRACT_ADDRESS" envDefault:"0x1370732E8557475059949766dDA08Fa7f8B7f893"`
	EnableWithdrawAction  bool          `env:"ENABLE_WITHDRAW_ACTION" envDefault:"false"`
	WalletTxTimeout       time.Duration `env:"WALLET_TX_TIMEOUT" envDefault:"60s"`

	// Storage
	RedisURL         string        `env:"REDIS_URL"`
	PassLockTTL      time.Duration `env:"PASS_LOCK_TTL" envDefault:"5m"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	DBMaxIdleConns   int           `env:"DB_MAX_IDLE_CONNS" envDefault:"2"`
	DBMaxOpenConns   int           `env:"DB_MAX_OPEN_CONNS" envDefault:"5"`
	DBConnLifetime   time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	HistoryCacheSize int           `env:"HISTORY_CACHE_SIZE" envDefault:"4096"`
}

// Load parses and validates environment variables into Config.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads environment variables without validating them, for callers
// that adjust the result before calling Validate.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	return cfg, nil
}

// Validate normalises defaults and rejects inconsistent settings.
func (c *Config) Validate() error {
	c.AdmissionPolicy = strings.ToLower(strings.TrimSpace(c.AdmissionPolicy))
	c.ConsumeFailurePolicy = strings.ToLower(strings.TrimSpace(c.ConsumeFailurePolicy))

	switch c.AdmissionPolicy {
	case AdmissionPolicyTicket:
		if strings.TrimSpace(c.WalletAPIURL) == "" && !c.DryRun {
			return fmt.Errorf("WALLET_API_URL is required when ADMISSION_POLICY is %q", AdmissionPolicyTicket)
		}
	case AdmissionPolicyAllowlist:
		if len(c.AllowedHandles()) == 0 {
			return fmt.Errorf("ADMISSION_ALLOWLIST is required when ADMISSION_POLICY is %q", AdmissionPolicyAllowlist)
		}
	default:
		return fmt.Errorf("unknown ADMISSION_POLICY %q", c.AdmissionPolicy)
	}

	switch c.ConsumeFailurePolicy {
	case ConsumeFailurePost, ConsumeFailureWithhold:
	default:
		return fmt.Errorf("unknown ADMISSION_CONSUME_FAILURE_POLICY %q", c.ConsumeFailurePolicy)
	}

	if c.MaxConversationRounds <= 0 {
		c.MaxConversationRounds = 8
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = 45 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.TraceSampleRatio <= 0 || c.TraceSampleRatio > 1 {
		c.TraceSampleRatio = 1
	}
	return nil
}

// AllowedHandles returns the trimmed, non-empty allowlist entries.
func (c *Config) AllowedHandles() []string {
	out := make([]string, 0, len(c.AdmissionAllowlist))
	for _, h := range c.AdmissionAllowlist {
		h = strings.TrimPrefix(strings.TrimSpace(h), "@")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// HasBlueskyCredentials reports whether the bot can log in.
func (c *Config) HasBlueskyCredentials() bool {
	return c.BskyHandle != "" && c.BskyAppPassword != ""
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
