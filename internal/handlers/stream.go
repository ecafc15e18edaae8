package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tenteen/tenteen/internal/auth"
	"github.com/tenteen/tenteen/internal/catalog"
	"github.com/tenteen/tenteen/internal/media"
	"github.com/tenteen/tenteen/internal/storage"
)

// MediaURLResponse tells a player where to fetch a song from.
type MediaURLResponse struct {
	URL            string          `json:"url"`
	StorageBackend storage.Backend `json:"storage_backend"`
	Format         media.Format    `json:"format"`
	Duration       float64         `json:"duration"`
	CoverURL       string          `json:"cover_url,omitempty"`
}

// StreamHandler serves audio with HTTP Range support from the local backend
// and redirects to the object store for remote blobs.
type StreamHandler struct {
	store  catalog.Store
	blobs  *storage.Set
	logger *slog.Logger
}

// NewStreamHandler creates the stream handler.
func NewStreamHandler(log *slog.Logger, store catalog.Store, blobs *storage.Set) *StreamHandler {
	return &StreamHandler{
		store:  store,
		blobs:  blobs,
		logger: log.With(slog.String("handler", "stream")),
	}
}

func (h *StreamHandler) Register(e *echo.Echo) {
	e.GET("/stream/:id", h.Stream)
	e.HEAD("/stream/:id", h.Stream)
	e.GET("/media/:id/url", h.MediaURL)
	e.GET("/media/:id/cover", h.Cover)
	e.HEAD("/media/:id/cover", h.Cover)
}

// Stream godoc
// @Summary Stream a song
// @Description Accepts a Range header. The token may be passed as ?token= for audio elements.
// @Tags stream
// @Success 200
// @Success 206
// @Success 302
// @Failure 404 {object} ErrorResponse
// @Failure 416
// @Router /stream/{id} [get]
func (h *StreamHandler) Stream(c echo.Context) error {
	rec, err := h.resolve(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if rec.StorageBackend == storage.BackendS3 {
		target, err := h.directURL(ctx, rec.StorageBackend, rec.AudioLocator, storage.CategoryAudio)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return c.Redirect(http.StatusFound, target)
	}
	return h.serveLocal(c, blobRef{
		id:          rec.ID,
		backend:     rec.StorageBackend,
		locator:     rec.AudioLocator,
		category:    storage.CategoryAudio,
		contentType: rec.Format.ContentType(),
		countPlays:  true,
	})
}

// Cover godoc
// @Summary Cover image of a song
// @Tags stream
// @Success 200
// @Success 302
// @Failure 404 {object} ErrorResponse
// @Router /media/{id}/cover [get]
func (h *StreamHandler) Cover(c echo.Context) error {
	rec, err := h.resolve(c)
	if err != nil {
		return err
	}
	if !rec.HasCover {
		return echo.NewHTTPError(http.StatusNotFound, "cover not found")
	}
	if rec.CoverBackend == storage.BackendS3 {
		target, err := h.directURL(c.Request().Context(), rec.CoverBackend, rec.CoverLocator, storage.CategoryImage)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return c.Redirect(http.StatusFound, target)
	}
	return h.serveLocal(c, blobRef{
		id:          rec.ID,
		backend:     rec.CoverBackend,
		locator:     rec.CoverLocator,
		category:    storage.CategoryImage,
		contentType: media.ImageContentType(rec.CoverLocator),
	})
}

type blobRef struct {
	id          string
	backend     storage.Backend
	locator     string
	category    storage.Category
	contentType string
	countPlays  bool
}

func (h *StreamHandler) serveLocal(c echo.Context, ref blobRef) error {
	ctx := c.Request().Context()
	provider, err := h.blobs.Get(ref.backend)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	ranges, err := h.blobs.RangeReader(ref.backend)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	info, err := provider.Stat(ctx, ref.locator, ref.category)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.logger.Warn("catalogued blob missing", slog.String("id", ref.id), slog.String("category", string(ref.category)))
		}
		return respondError(c, h.logger, err)
	}
	size := info.Size

	header := c.Response().Header()
	header.Set("Accept-Ranges", "bytes")
	window := media.ByteRange{Start: 0, End: size - 1}
	status := http.StatusOK
	if raw := c.Request().Header.Get("Range"); raw != "" {
		window, err = media.ParseRange(raw, size)
		if errors.Is(err, media.ErrRangeNotSatisfiable) {
			header.Set("Content-Range", media.UnsatisfiedContentRange(size))
			return c.NoContent(http.StatusRequestedRangeNotSatisfiable)
		}
		if err != nil {
			return respondError(c, h.logger, err)
		}
		status = http.StatusPartialContent
		header.Set("Content-Range", window.ContentRange(size))
	}
	header.Set(echo.HeaderContentType, ref.contentType)
	header.Set("Cache-Control", "no-cache")
	if size == 0 {
		header.Set(echo.HeaderContentLength, "0")
		return c.NoContent(status)
	}
	header.Set(echo.HeaderContentLength, strconv.FormatInt(window.Length(), 10))
	if c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}

	body, err := ranges.ReadRange(ctx, ref.locator, ref.category, window.Start, window.End)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	defer body.Close()

	if ref.countPlays && window.Start == 0 {
		h.countPlay(ctx, ref.id)
	}
	c.Response().WriteHeader(status)
	if _, err := io.Copy(c.Response(), body); err != nil {
		// Headers are already on the wire; end the response as is.
		h.logger.Warn("stream interrupted",
			slog.String("id", ref.id),
			slog.Int64("start", window.Start),
			slog.Int64("end", window.End),
			slog.Any("error", err))
	}
	return nil
}

// MediaURL godoc
// @Summary Playable URL of a song
// @Tags stream
// @Success 200 {object} MediaURLResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /media/{id}/url [get]
func (h *StreamHandler) MediaURL(c echo.Context) error {
	rec, err := h.resolve(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	resp := MediaURLResponse{
		StorageBackend: rec.StorageBackend,
		Format:         rec.Format,
		Duration:       rec.Duration,
	}
	if rec.StorageBackend == storage.BackendS3 {
		if resp.URL, err = h.directURL(ctx, rec.StorageBackend, rec.AudioLocator, storage.CategoryAudio); err != nil {
			return respondError(c, h.logger, err)
		}
	} else {
		resp.URL = withToken(c, "/stream/"+url.PathEscape(rec.ID))
	}
	if rec.HasCover {
		if rec.CoverBackend == storage.BackendS3 {
			if resp.CoverURL, err = h.directURL(ctx, rec.CoverBackend, rec.CoverLocator, storage.CategoryImage); err != nil {
				return respondError(c, h.logger, err)
			}
		} else {
			resp.CoverURL = withToken(c, "/media/"+url.PathEscape(rec.ID)+"/cover")
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// withToken appends the caller's token so that media elements, which cannot
// set headers, can fetch path.
func withToken(c echo.Context, path string) string {
	if token := auth.RawTokenFromContext(c); token != "" {
		return path + "?token=" + url.QueryEscape(token)
	}
	return path
}

func (h *StreamHandler) resolve(c echo.Context) (catalog.Record, error) {
	principal, err := RequirePrincipal(c)
	if err != nil {
		return catalog.Record{}, err
	}
	id, err := requireID(c)
	if err != nil {
		return catalog.Record{}, err
	}
	rec, err := h.store.Get(c.Request().Context(), id)
	if err != nil {
		return catalog.Record{}, respondError(c, h.logger, err)
	}
	if !canAccess(principal, rec) {
		return catalog.Record{}, echo.NewHTTPError(http.StatusNotFound, "song not found")
	}
	return rec, nil
}

func (h *StreamHandler) directURL(ctx context.Context, backend storage.Backend, locator string, category storage.Category) (string, error) {
	urls, err := h.blobs.DirectURLer(backend)
	if err != nil {
		return "", err
	}
	target, err := urls.DirectURL(ctx, locator, category)
	if err != nil {
		return "", err
	}
	if target == "" {
		return "", storage.Unavailable("direct url", errors.New("empty url"))
	}
	return target, nil
}

func (h *StreamHandler) countPlay(ctx context.Context, id string) {
	if err := h.store.IncrementPlays(ctx, id); err != nil {
		h.logger.Warn("play count update failed", slog.String("id", id), slog.Any("error", err))
	}
}
