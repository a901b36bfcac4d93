// Package walletapi implements ticket.Wallet against a custodial wallet
// gateway that reads and invokes contracts on behalf of the agent.
package walletapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/ticket"
)

// Config configures the client.
type Config struct {
	BaseURL   string
	APIKey    string
	Address   string
	NetworkID string
	// TxTimeout bounds how long an invoke waits for its receipt.
	TxTimeout time.Duration
}

// Client is a wallet gateway client.
type Client struct {
	httpClient *resty.Client
	address    string
	networkID  string
	txTimeout  time.Duration
	log        zerolog.Logger
}

// NewClient creates a Resty-backed client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	txTimeout := cfg.TxTimeout
	if txTimeout <= 0 {
		txTimeout = 60 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(txTimeout + 15*time.Second)
	if cfg.APIKey != "" {
		httpClient.SetHeader("X-API-Key", cfg.APIKey)
	}

	return &Client{
		httpClient: httpClient,
		address:    cfg.Address,
		networkID:  cfg.NetworkID,
		txTimeout:  txTimeout,
		log:        log.With().Str("component", "wallet_api").Logger(),
	}
}

// Address returns the agent wallet address.
func (c *Client) Address() string {
	return c.address
}

// NetworkID returns the chain the wallet operates on.
func (c *Client) NetworkID() string {
	return c.networkID
}

type contractRequest struct {
	NetworkID       string          `json:"network_id"`
	WalletAddress   string          `json:"wallet_address,omitempty"`
	ContractAddress string          `json:"contract_address"`
	Method          string          `json:"method"`
	Args            map[string]any  `json:"args"`
	ABI             json.RawMessage `json:"abi"`
	WaitSeconds     int             `json:"wait_seconds,omitempty"`
}

type readResponse struct {
	Result json.RawMessage `json:"result"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e errorResponse) text(fallback string) string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	default:
		return fallback
	}
}

// ReadContract performs a view call and returns the raw decoded result.
func (c *Client) ReadContract(ctx context.Context, call ticket.ContractCall) (json.RawMessage, error) {
	var out readResponse
	var apiErr errorResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(contractRequest{
			NetworkID:       c.networkID,
			ContractAddress: call.ContractAddress,
			Method:          call.Method,
			Args:            call.Args,
			ABI:             call.ABI,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/contracts/read")
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", call.Method, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("read %s: %w", call.Method,
			&agentErrors.HTTPStatusError{StatusCode: resp.StatusCode(), Body: apiErr.text(resp.String())})
	}
	return out.Result, nil
}

// InvokeContract submits a transaction and waits for its receipt.
func (c *Client) InvokeContract(ctx context.Context, call ticket.ContractCall) (*ticket.Transaction, error) {
	var tx ticket.Transaction
	var apiErr errorResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(contractRequest{
			NetworkID:       c.networkID,
			WalletAddress:   c.address,
			ContractAddress: call.ContractAddress,
			Method:          call.Method,
			Args:            call.Args,
			ABI:             call.ABI,
			WaitSeconds:     int(c.txTimeout.Seconds()),
		}).
		SetResult(&tx).
		SetError(&apiErr).
		Post("/v1/contracts/invoke")
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", call.Method, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("invoke %s: %w", call.Method,
			&agentErrors.HTTPStatusError{StatusCode: resp.StatusCode(), Body: apiErr.text(resp.String())})
	}
	if strings.EqualFold(tx.Status, "failed") {
		return &tx, fmt.Errorf("invoke %s: transaction %s failed", call.Method, tx.Hash)
	}

	c.log.Info().Str("method", call.Method).Str("tx", tx.Hash).Str("status", tx.Status).Msg("contract invoked")
	return &tx, nil
}

type balanceResponse struct {
	AssetID string          `json:"asset_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// Balance returns the wallet balance of assetID in whole units.
func (c *Client) Balance(ctx context.Context, assetID string) (decimal.Decimal, error) {
	var out balanceResponse
	var apiErr errorResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("network_id", c.networkID).
		SetResult(&out).
		SetError(&apiErr).
		Get(fmt.Sprintf("/v1/wallets/%s/balances/%s", url.PathEscape(c.address), url.PathEscape(assetID)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance %s: %w", assetID, err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("balance %s: %w", assetID,
			&agentErrors.HTTPStatusError{StatusCode: resp.StatusCode(), Body: apiErr.text(resp.String())})
	}
	return out.Amount, nil
}

// Ensure interface compliance.
var _ ticket.Wallet = (*Client)(nil)
