package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tenteen/tenteen/internal/version"
)

// Pinger is a dependency whose reachability is reported by GET /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHandler serves /ping and /health.
type PingHandler struct {
	checks map[string]Pinger
	logger *slog.Logger
}

// NewPingHandler creates a ping handler. checks maps a dependency name to its check.
func NewPingHandler(log *slog.Logger, checks map[string]Pinger) *PingHandler {
	return &PingHandler{
		checks: checks,
		logger: log.With(slog.String("handler", "ping")),
	}
}

// Register mounts GET /ping, GET /health and HEAD /health on the Echo instance.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Health)
	e.HEAD("/health", h.PingHead)
}

// Ping returns 200 JSON {"status":"ok","version":...}.
func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetInfo(),
	})
}

// PingHead returns 200 No Content for liveness checks.
func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Health pings every dependency and returns 503 when any is down.
func (h *PingHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("dependency", name), slog.Any("error", err))
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	return c.JSON(status, map[string]any{
		"status":       overall,
		"dependencies": deps,
	})
}
