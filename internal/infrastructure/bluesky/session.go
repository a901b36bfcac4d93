package bluesky

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"
)

const (
	// DefaultRefreshSchedule refreshes well inside the two hour access
	// token lifetime.
	DefaultRefreshSchedule = "*/30 * * * *"
	// RefreshMargin is how close to expiry EnsureFresh refreshes. It exceeds
	// the default schedule period so a token never lapses between jobs.
	RefreshMargin  = 45 * time.Minute
	refreshTimeout = 30 * time.Second
)

// TokenExpiry reads the exp claim of a JWT without verifying it. The PDS
// signs the token; the client only needs to know when to refresh it.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// AccessExpiry returns when the current access token expires.
func (c *Client) AccessExpiry() (time.Time, error) {
	session := c.currentSession()
	if session == nil {
		return time.Time{}, ErrNotLoggedIn
	}
	return TokenExpiry(session.AccessJwt)
}

// EnsureFresh refreshes the session when the access token expires within
// RefreshMargin of now, or cannot be parsed.
func (c *Client) EnsureFresh(ctx context.Context, now time.Time) error {
	exp, err := c.AccessExpiry()
	if err == nil && exp.Sub(now) > RefreshMargin {
		return nil
	}
	return c.Refresh(ctx)
}

// SessionRefresher keeps the client's session alive on a cron schedule.
type SessionRefresher struct {
	client   *Client
	schedule string
	ctab     *crontab.Crontab
	log      zerolog.Logger
}

// NewSessionRefresher creates a refresher. An empty schedule uses
// DefaultRefreshSchedule.
func NewSessionRefresher(client *Client, schedule string, log zerolog.Logger) *SessionRefresher {
	if schedule == "" {
		schedule = DefaultRefreshSchedule
	}
	return &SessionRefresher{
		client:   client,
		schedule: schedule,
		ctab:     crontab.New(),
		log:      log.With().Str("component", "session_refresher").Logger(),
	}
}

// Run schedules the refresh job and blocks until ctx is cancelled.
func (r *SessionRefresher) Run(ctx context.Context) error {
	if err := r.ctab.AddJob(r.schedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		r.refresh(jobCtx)
	}); err != nil {
		return fmt.Errorf("schedule session refresh %q: %w", r.schedule, err)
	}
	r.log.Info().Str("schedule", r.schedule).Msg("session refresh scheduled")

	<-ctx.Done()
	r.ctab.Shutdown()
	return nil
}

func (r *SessionRefresher) refresh(ctx context.Context) {
	if err := r.client.EnsureFresh(ctx, time.Now()); err != nil {
		r.log.Error().Err(err).Msg("session refresh failed")
		return
	}
	if exp, err := r.client.AccessExpiry(); err == nil {
		r.log.Debug().Time("expires_at", exp).Msg("session checked")
	}
}
