// Package ingest accepts uploaded audio, deduplicates it by content digest,
// stores it and creates its catalog record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tenteen/tenteen/internal/auth"
	"github.com/tenteen/tenteen/internal/catalog"
	"github.com/tenteen/tenteen/internal/media"
	"github.com/tenteen/tenteen/internal/moderation"
	"github.com/tenteen/tenteen/internal/settings"
	"github.com/tenteen/tenteen/internal/storage"
)

// File is one uploaded part.
type File struct {
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Request is a single upload.
type Request struct {
	Audio    File
	Cover    *File
	Title    string
	Language string
	ArtistID string
	AlbumID  string
	Tags     []string
	Uploader auth.Principal
}

// DuplicateError reports that identical content is already catalogued.
type DuplicateError struct {
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate content: existing record %s", e.ExistingID)
}

// Is makes errors.Is(err, catalog.ErrDuplicate) hold.
func (e *DuplicateError) Is(target error) bool {
	return target == catalog.ErrDuplicate
}

// PolicySource supplies the upload policy snapshot for a request.
type PolicySource interface {
	Get(ctx context.Context) (settings.Policy, error)
}

// DefaultCoverMaxBytes limits cover images when no limit is configured.
const DefaultCoverMaxBytes = 5 << 20

// Config bounds upload sizes independently of the stored policy.
type Config struct {
	MaxUploadBytes int64
	CoverMaxBytes  int64
}

// Pipeline turns uploads into stored blobs and catalog records.
type Pipeline struct {
	store     catalog.Store
	blobs     *storage.Set
	extractor *media.Extractor
	policy    PolicySource
	cfg       Config
	newName   func() string
	logger    *slog.Logger
}

// NewPipeline creates a pipeline writing new blobs to the primary backend of blobs.
func NewPipeline(log *slog.Logger, store catalog.Store, blobs *storage.Set, extractor *media.Extractor, policy PolicySource, cfg Config) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if cfg.CoverMaxBytes <= 0 {
		cfg.CoverMaxBytes = DefaultCoverMaxBytes
	}
	return &Pipeline{
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		policy:    policy,
		cfg:       cfg,
		newName:   uuid.NewString,
		logger:    log.With(slog.String("service", "ingest")),
	}
}

// Ingest runs the full upload pipeline. Validation and duplicate failures
// leave no persistent side effects.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (catalog.Record, error) {
	if strings.TrimSpace(req.Uploader.UserID) == "" {
		return catalog.Record{}, auth.ErrUnauthenticated
	}
	if req.Audio.Open == nil {
		return catalog.Record{}, fmt.Errorf("%w: audio file is required", media.ErrInvalidFormat)
	}
	policy, err := p.policy.Get(ctx)
	if err != nil {
		return catalog.Record{}, err
	}

	format, err := media.ValidateAudio(req.Audio.Filename, req.Audio.ContentType, policy.AllowedFormats)
	if err != nil {
		return catalog.Record{}, err
	}
	if err := catalog.ValidateReferenceID("artistId", req.ArtistID); err != nil {
		return catalog.Record{}, err
	}
	if err := catalog.ValidateReferenceID("albumId", req.AlbumID); err != nil {
		return catalog.Record{}, err
	}
	var coverExt string
	if req.Cover != nil {
		if coverExt, err = media.ValidateImage(req.Cover.Filename, req.Cover.ContentType); err != nil {
			return catalog.Record{}, err
		}
	}

	audio, err := spoolFile(req.Audio, policy.MaxUploadBytes(p.cfg.MaxUploadBytes))
	if err != nil {
		return catalog.Record{}, err
	}
	defer p.release(audio)

	var cover *media.Spooled
	if req.Cover != nil {
		if cover, err = spoolFile(*req.Cover, p.cfg.CoverMaxBytes); err != nil {
			return catalog.Record{}, fmt.Errorf("cover image: %w", err)
		}
		defer p.release(cover)
	}

	existing, err := p.store.GetByDigest(ctx, audio.Digest)
	switch {
	case err == nil:
		return catalog.Record{}, &DuplicateError{ExistingID: existing.ID}
	case !errors.Is(err, catalog.ErrNotFound):
		return catalog.Record{}, fmt.Errorf("lookup digest: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return catalog.Record{}, err
	}
	primary := p.blobs.Primary()
	audioBlob, err := saveSpooled(ctx, primary, audio, p.newName()+"."+string(format), storage.CategoryAudio, format.ContentType())
	if err != nil {
		return catalog.Record{}, fmt.Errorf("store audio: %w", err)
	}
	var coverBlob storage.Blob
	if cover != nil {
		coverBlob, err = saveSpooled(ctx, primary, cover, p.newName()+"."+coverExt, storage.CategoryImage, req.Cover.ContentType)
		if err != nil {
			p.blobs.DeleteBestEffort(context.WithoutCancel(ctx), p.logger, audioBlob.Backend, audioBlob.Locator, storage.CategoryAudio)
			return catalog.Record{}, fmt.Errorf("store cover image: %w", err)
		}
	}

	md := p.extract(ctx, audio, format)
	status := moderation.Decide(req.Uploader.Role, policy.AutoApprove)

	rec, err := p.store.Create(ctx, catalog.NewRecord{
		Digest:           audio.Digest,
		StorageBackend:   audioBlob.Backend,
		AudioLocator:     audioBlob.Locator,
		CoverBackend:     coverBlob.Backend,
		CoverLocator:     coverBlob.Locator,
		Title:            titleOrFilename(req.Title, req.Audio.Filename),
		Language:         strings.TrimSpace(req.Language),
		ArtistID:         strings.TrimSpace(req.ArtistID),
		AlbumID:          strings.TrimSpace(req.AlbumID),
		Tags:             moderation.CleanTags(req.Tags),
		Duration:         md.Duration,
		Bitrate:          md.Bitrate,
		Format:           format,
		SizeBytes:        audio.Size,
		Status:           status,
		UploadedBy:       req.Uploader.UserID,
		OriginalFilename: req.Audio.Filename,
	})
	if err != nil {
		cleanup := context.WithoutCancel(ctx)
		p.blobs.DeleteBestEffort(cleanup, p.logger, audioBlob.Backend, audioBlob.Locator, storage.CategoryAudio)
		p.blobs.DeleteBestEffort(cleanup, p.logger, coverBlob.Backend, coverBlob.Locator, storage.CategoryImage)
		if errors.Is(err, catalog.ErrDuplicate) {
			winner, lookupErr := p.store.GetByDigest(cleanup, audio.Digest)
			if lookupErr != nil {
				return catalog.Record{}, fmt.Errorf("lookup concurrent duplicate: %w", lookupErr)
			}
			return catalog.Record{}, &DuplicateError{ExistingID: winner.ID}
		}
		return catalog.Record{}, fmt.Errorf("create record: %w", err)
	}

	p.logger.Info("upload ingested",
		slog.String("id", rec.ID),
		slog.String("backend", string(rec.StorageBackend)),
		slog.String("format", string(rec.Format)),
		slog.Int64("size", rec.SizeBytes),
		slog.String("status", string(rec.Status)))
	return rec, nil
}

func (p *Pipeline) extract(ctx context.Context, audio *media.Spooled, format media.Format) media.Metadata {
	if p.extractor == nil {
		return media.Metadata{}
	}
	f, err := audio.Open()
	if err != nil {
		p.logger.Warn("reopen spooled upload failed", slog.Any("error", err))
		return media.Metadata{}
	}
	defer f.Close()
	return p.extractor.Extract(ctx, f, audio.Size, format)
}

func (p *Pipeline) release(s *media.Spooled) {
	if err := s.Close(); err != nil {
		p.logger.Warn("remove spooled upload failed", slog.String("path", s.Path), slog.Any("error", err))
	}
}

func spoolFile(file File, maxBytes int64) (*media.Spooled, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrUnreadable, err)
	}
	defer rc.Close()
	return media.Spool(rc, maxBytes)
}

func saveSpooled(ctx context.Context, provider storage.Provider, s *media.Spooled, name string, category storage.Category, contentType string) (storage.Blob, error) {
	f, err := s.Open()
	if err != nil {
		return storage.Blob{}, storage.Unavailable("reopen spooled upload", err)
	}
	defer f.Close()
	return provider.Save(ctx, f, s.Size, name, category, contentType)
}

func titleOrFilename(title, filename string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
	}
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base = strings.TrimSpace(base); base == "" {
		return "Untitled"
	}
	return base
}

// SplitTags accepts either repeated form values or a single comma-separated value.
func SplitTags(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return moderation.CleanTags(out)
}
