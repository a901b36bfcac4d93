// Package bluesky is a small XRPC client for the parts of the Bluesky API
// the mention agent uses.
package bluesky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
)

// DefaultServiceURL is the public PDS entryway.
const DefaultServiceURL = "https://bsky.social"

// ErrNotLoggedIn is returned by authenticated calls made before Login.
var ErrNotLoggedIn = errors.New("bluesky: not logged in")

// Config configures the client.
type Config struct {
	ServiceURL  string
	Identifier  string
	AppPassword string
	Timeout     time.Duration
	// PageSize is the listNotifications page size, 1 to 100.
	PageSize int
}

// Session is an authenticated account session.
type Session struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	DID        string `json:"did"`
}

// XRPCError is the error body returned by XRPC endpoints.
type XRPCError struct {
	StatusCode int    `json:"-"`
	Name       string `json:"error"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *XRPCError) Error() string {
	return fmt.Sprintf("xrpc %d %s: %s", e.StatusCode, e.Name, e.Message)
}

// Unwrap exposes the status code to the retry classifier.
func (e *XRPCError) Unwrap() error {
	return &agentErrors.HTTPStatusError{StatusCode: e.StatusCode, Body: e.Message}
}

func (e *XRPCError) expiredToken() bool {
	return e.Name == "ExpiredToken" || (e.StatusCode == http.StatusUnauthorized && e.Name == "InvalidToken")
}

// Client talks to a PDS over XRPC.
type Client struct {
	httpClient  *resty.Client
	identifier  string
	appPassword string
	pageSize    int
	log         zerolog.Logger

	mu      sync.RWMutex
	session *Session
}

// NewClient creates a client. Call Login before any authenticated call.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	return &Client{
		httpClient: resty.New().
			SetBaseURL(strings.TrimRight(serviceURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		identifier:  cfg.Identifier,
		appPassword: cfg.AppPassword,
		pageSize:    pageSize,
		log:         log.With().Str("component", "bluesky").Logger(),
	}
}

// Login creates a new session with the app password.
func (c *Client) Login(ctx context.Context) error {
	var session Session
	var xerr XRPCError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"identifier": c.identifier, "password": c.appPassword}).
		SetResult(&session).
		SetError(&xerr).
		Post(xrpcPath("com.atproto.server.createSession"))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if resp.IsError() {
		xerr.StatusCode = resp.StatusCode()
		return fmt.Errorf("create session: %w", &xerr)
	}

	c.setSession(&session)
	c.log.Info().Str("did", session.DID).Msg("bluesky session created")
	return nil
}

// Refresh exchanges the refresh token for a new session. When the refresh
// token itself is rejected it logs in again.
func (c *Client) Refresh(ctx context.Context) error {
	current := c.currentSession()
	if current == nil {
		return c.Login(ctx)
	}

	var session Session
	var xerr XRPCError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(current.RefreshJwt).
		SetResult(&session).
		SetError(&xerr).
		Post(xrpcPath("com.atproto.server.refreshSession"))
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	if resp.IsError() {
		xerr.StatusCode = resp.StatusCode()
		c.log.Warn().Err(&xerr).Msg("refresh rejected, logging in again")
		return c.Login(ctx)
	}

	c.setSession(&session)
	c.log.Debug().Msg("bluesky session refreshed")
	return nil
}

// Identity returns the handle and DID of the logged in account.
func (c *Client) Identity() (handle, did string) {
	if s := c.currentSession(); s != nil {
		return s.Handle, s.DID
	}
	return "", ""
}

func (c *Client) currentSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// call performs an authenticated XRPC request. An expired access token is
// refreshed once and the request repeated.
func (c *Client) call(ctx context.Context, method, nsid string, build func(*resty.Request), result any) error {
	for attempt := 0; ; attempt++ {
		session := c.currentSession()
		if session == nil {
			return ErrNotLoggedIn
		}

		var xerr XRPCError
		req := c.httpClient.R().
			SetContext(ctx).
			SetAuthToken(session.AccessJwt).
			SetError(&xerr)
		if result != nil {
			req.SetResult(result)
		}
		if build != nil {
			build(req)
		}

		resp, err := req.Execute(method, xrpcPath(nsid))
		if err != nil {
			return fmt.Errorf("%s: %w", nsid, err)
		}
		if !resp.IsError() {
			return nil
		}

		xerr.StatusCode = resp.StatusCode()
		if attempt == 0 && xerr.expiredToken() {
			if err := c.Refresh(ctx); err != nil {
				return fmt.Errorf("%s: %w", nsid, err)
			}
			continue
		}
		return fmt.Errorf("%s: %w", nsid, &xerr)
	}
}

func xrpcPath(nsid string) string {
	return "/xrpc/" + nsid
}
