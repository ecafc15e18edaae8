package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tenteen/tenteen/internal/auth"
	"github.com/tenteen/tenteen/internal/moderation"
	"github.com/tenteen/tenteen/internal/reaper"
	"github.com/tenteen/tenteen/internal/settings"
)

// Sweeper runs an orphan blob sweep on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (reaper.Result, error)
}

// AdminHandler exposes the review queue and the upload policy to reviewers.
type AdminHandler struct {
	moderation *moderation.Service
	settings   *settings.Service
	sweeper    Sweeper
	logger     *slog.Logger
}

// NewAdminHandler creates the admin handler. sweeper may be nil.
func NewAdminHandler(log *slog.Logger, moderation *moderation.Service, settings *settings.Service, sweeper Sweeper) *AdminHandler {
	return &AdminHandler{
		moderation: moderation,
		settings:   settings,
		sweeper:    sweeper,
		logger:     log.With(slog.String("handler", "admin")),
	}
}

func (h *AdminHandler) Register(e *echo.Echo) {
	group := e.Group("/admin", auth.RequireElevated())
	group.GET("/pending", h.ListPending)
	group.POST("/approve/:id", h.Approve)
	group.DELETE("/reject/:id", h.Reject)
	group.PATCH("/edit/:id", h.Edit)
	group.POST("/approve-all", h.ApproveAll)
	group.GET("/settings", h.GetSettings)
	group.POST("/settings", h.UpdateSettings)
	if h.sweeper != nil {
		group.POST("/reaper/sweep", h.Sweep)
	}
}

// ListPending godoc
// @Summary List songs awaiting review
// @Tags admin
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} catalog.Page
// @Router /admin/pending [get]
func (h *AdminHandler) ListPending(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	resp, err := h.moderation.ListPending(c.Request().Context(), page, limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Approve godoc
// @Summary Approve a song
// @Tags admin
// @Success 200 {object} map[string]any
// @Failure 404 {object} ErrorResponse
// @Router /admin/approve/{id} [post]
func (h *AdminHandler) Approve(c echo.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	rec, err := h.moderation.Approve(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "song approved",
		"song":    rec,
	})
}

// Reject godoc
// @Summary Reject a song and delete its files
// @Tags admin
// @Success 200 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/reject/{id} [delete]
func (h *AdminHandler) Reject(c echo.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	if err := h.moderation.Reject(c.Request().Context(), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, ErrorResponse{Message: "song rejected and deleted"})
}

// Edit godoc
// @Summary Edit descriptive fields of a song
// @Tags admin
// @Param payload body moderation.EditRequest true "Fields to change"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/edit/{id} [patch]
func (h *AdminHandler) Edit(c echo.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	var req moderation.EditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, err := h.moderation.Edit(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "song updated",
		"song":    rec,
	})
}

func (h *AdminHandler) ApproveAll(c echo.Context) error {
	n, err := h.moderation.ApproveAll(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "pending songs approved",
		"count":   n,
	})
}

func (h *AdminHandler) GetSettings(c echo.Context) error {
	policy, err := h.settings.Get(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, policy)
}

// UpdateSettings godoc
// @Summary Update the upload policy
// @Tags admin
// @Param payload body settings.UpdateRequest true "Policy changes"
// @Success 200 {object} settings.Policy
// @Failure 400 {object} ErrorResponse
// @Router /admin/settings [post]
func (h *AdminHandler) UpdateSettings(c echo.Context) error {
	var req settings.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	policy, err := h.settings.Update(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, policy)
}

// Sweep runs one orphan sweep immediately and reports its counts.
func (h *AdminHandler) Sweep(c echo.Context) error {
	res, err := h.sweeper.Sweep(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}
