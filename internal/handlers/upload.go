package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tenteen/tenteen/internal/catalog"
	"github.com/tenteen/tenteen/internal/ingest"
	"github.com/tenteen/tenteen/internal/ratelimit"
)

const formOverheadBytes = 1 << 20

// UploadResponse is returned with 201 after a successful upload.
type UploadResponse struct {
	Message string         `json:"message"`
	Song    catalog.Record `json:"song"`
	Status  catalog.Status `json:"status"`
}

// UploadHandler accepts multipart audio uploads and reports the upload policy.
type UploadHandler struct {
	pipeline  *ingest.Pipeline
	policy    ingest.PolicySource
	limiter   *ratelimit.Limiter
	bodyLimit int64
	logger    *slog.Logger
}

// NewUploadHandler creates the upload handler. The whole multipart request is
// bounded by the audio and cover limits of cfg; a zero audio limit leaves it
// unbounded.
func NewUploadHandler(log *slog.Logger, pipeline *ingest.Pipeline, policy ingest.PolicySource, limiter *ratelimit.Limiter, cfg ingest.Config) *UploadHandler {
	var bodyLimit int64
	if cfg.MaxUploadBytes > 0 {
		cover := cfg.CoverMaxBytes
		if cover <= 0 {
			cover = ingest.DefaultCoverMaxBytes
		}
		bodyLimit = cfg.MaxUploadBytes + cover + formOverheadBytes
	}
	return &UploadHandler{
		pipeline:  pipeline,
		policy:    policy,
		limiter:   limiter,
		bodyLimit: bodyLimit,
		logger:    log.With(slog.String("handler", "upload")),
	}
}

func (h *UploadHandler) Register(e *echo.Echo) {
	group := e.Group("/upload")
	group.POST("/audio", h.Upload, h.limiter.Middleware())
	group.GET("/settings", h.Settings)
}

// Upload godoc
// @Summary Upload a song
// @Description Multipart upload of an audio file with optional cover image.
// @Tags upload
// @Accept multipart/form-data
// @Success 201 {object} UploadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} DuplicateResponse
// @Failure 413 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /upload/audio [post]
func (h *UploadHandler) Upload(c echo.Context) error {
	principal, err := RequirePrincipal(c)
	if err != nil {
		return err
	}
	if h.bodyLimit > 0 {
		c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, h.bodyLimit)
	}
	audio, err := c.FormFile("audio")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return echo.NewHTTPError(http.StatusBadRequest, "audio file is required")
		}
		return h.formError(c, err)
	}
	form, err := c.FormParams()
	if err != nil {
		return h.formError(c, err)
	}
	req := ingest.Request{
		Audio:    formFile(audio),
		Title:    form.Get("title"),
		Language: form.Get("language"),
		ArtistID: form.Get("artistId"),
		AlbumID:  form.Get("albumId"),
		Tags:     ingest.SplitTags(form["tags"]),
		Uploader: principal,
	}
	if cover, err := c.FormFile("coverImage"); err == nil {
		f := formFile(cover)
		req.Cover = &f
	} else if !errors.Is(err, http.ErrMissingFile) {
		return h.formError(c, err)
	}

	rec, err := h.pipeline.Ingest(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	message := "song uploaded and pending approval"
	if rec.Status == catalog.StatusApproved {
		message = "song uploaded and approved"
	}
	return c.JSON(http.StatusCreated, UploadResponse{Message: message, Song: rec, Status: rec.Status})
}

// Settings godoc
// @Summary Current upload policy
// @Tags upload
// @Success 200 {object} settings.Policy
// @Router /upload/settings [get]
func (h *UploadHandler) Settings(c echo.Context) error {
	policy, err := h.policy.Get(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, policy)
}

func (h *UploadHandler) formError(c echo.Context, err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return respondError(c, h.logger, err)
	}
	h.logger.Debug("invalid multipart form", slog.Any("error", err))
	return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
}

func formFile(fh *multipart.FileHeader) ingest.File {
	return ingest.File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}
