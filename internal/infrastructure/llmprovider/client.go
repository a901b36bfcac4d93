package llmprovider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/llm"
	"github.com/janhq/mention-agent/internal/infrastructure/metrics"
)

const completionsPath = "/v1/chat/completions"

// Config configures the client.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// Client implements llm.Provider against an OpenAI compatible API.
type Client struct {
	httpClient *resty.Client
	limiter    *rate.Limiter
	model      string
	log        zerolog.Logger
}

// NewClient creates a Resty-backed client. A non-positive RateLimitRPS
// disables client side rate limiting.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 75 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		model:      cfg.Model,
		log:        log.With().Str("component", "llm_client").Logger(),
	}
}

// Model returns the default model.
func (c *Client) Model() string {
	return c.model
}

// CreateChatCompletion calls /v1/chat/completions. Non-2xx answers are
// returned as *errors.HTTPStatusError so the retry classifier can tell
// throttling from bad requests.
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	start := time.Now()
	var completion openai.ChatCompletionResponse
	var apiErr openai.ErrorResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&completion).
		SetError(&apiErr).
		Post(completionsPath)
	elapsed := time.Since(start)

	if err != nil {
		metrics.RecordModelCall(req.Model, "transport_error", elapsed.Seconds())
		return nil, fmt.Errorf("llm api request: %w", err)
	}
	if resp.IsError() {
		metrics.RecordModelCall(req.Model, fmt.Sprintf("http_%d", resp.StatusCode()), elapsed.Seconds())
		body := resp.String()
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			body = apiErr.Error.Message
		}
		c.log.Warn().Int("status", resp.StatusCode()).Str("model", req.Model).Msg("llm api error")
		return nil, &agentErrors.HTTPStatusError{StatusCode: resp.StatusCode(), Body: body}
	}

	metrics.RecordModelCall(req.Model, "success", elapsed.Seconds())
	c.log.Debug().
		Str("model", req.Model).
		Int("prompt_tokens", completion.Usage.PromptTokens).
		Int("completion_tokens", completion.Usage.CompletionTokens).
		Dur("latency", elapsed).
		Msg("chat completion")
	return &completion, nil
}

// Ensure interface compliance.
var _ llm.Provider = (*Client)(nil)
