package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tenteen/tenteen/internal/auth"
	"github.com/tenteen/tenteen/internal/catalog"
	"github.com/tenteen/tenteen/internal/ingest"
	"github.com/tenteen/tenteen/internal/media"
	"github.com/tenteen/tenteen/internal/moderation"
	"github.com/tenteen/tenteen/internal/settings"
	"github.com/tenteen/tenteen/internal/storage"
)

// ErrorResponse is the standard API error body (message only).
type ErrorResponse struct {
	Message string `json:"message"`
}

// DuplicateResponse is returned with 409 and points at the existing song.
type DuplicateResponse struct {
	Message string `json:"message"`
	SongID  string `json:"song_id"`
}

// respondError maps domain errors to HTTP responses. Storage locators and
// internal error text never reach the client.
func respondError(c echo.Context, log *slog.Logger, err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	var dup *ingest.DuplicateError
	if errors.As(err, &dup) {
		return c.JSON(http.StatusConflict, DuplicateResponse{
			Message: "song already exists",
			SongID:  dup.ExistingID,
		})
	}
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, media.ErrTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
	case errors.Is(err, media.ErrInvalidFormat),
		errors.Is(err, moderation.ErrInvalidEdit),
		errors.Is(err, catalog.ErrInvalidReference),
		errors.Is(err, settings.ErrInvalidPolicy):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, media.ErrEmptyPayload):
		return echo.NewHTTPError(http.StatusBadRequest, "uploaded file is empty")
	case errors.Is(err, media.ErrUnreadable):
		return echo.NewHTTPError(http.StatusBadRequest, "uploaded file could not be read")
	case errors.Is(err, media.ErrRangeMalformed):
		return echo.NewHTTPError(http.StatusBadRequest, "malformed range header")
	case errors.Is(err, catalog.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, "song already exists")
	case errors.Is(err, catalog.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "song not found")
	case errors.Is(err, storage.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "media not found")
	case errors.Is(err, auth.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, storage.ErrUnsupported):
		log.Error("storage failure", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage temporarily unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Info("request aborted", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusRequestTimeout, "request aborted")
	default:
		log.Error("request failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
