package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/mention-agent/internal/domain/notification"
	"github.com/janhq/mention-agent/internal/interfaces/httpserver/middleware"
)

const readinessTimeout = 3 * time.Second

// ReadinessResponse is the body of /readyz.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// StatusResponse is the body of /v1/status.
type StatusResponse struct {
	Service   string                   `json:"service"`
	RequestID string                   `json:"request_id,omitempty"`
	LastPass  *notification.PassReport `json:"last_pass"`
}

func (s *HTTPServer) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	resp := ReadinessResponse{Status: "ready"}
	code := http.StatusOK
	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
	}
	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("check", check.Name).Msg("readiness check failed")
			resp.Checks[check.Name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}
	c.JSON(code, resp)
}

func (s *HTTPServer) handleStatus(c *gin.Context) {
	resp := StatusResponse{
		Service:   s.cfg.ServiceName,
		RequestID: middleware.GetRequestID(c),
	}
	if s.status != nil {
		resp.LastPass = s.status.LastReport()
	}
	c.JSON(http.StatusOK, resp)
}
