// Package moderation decides the initial state of new uploads and applies
// reviewer transitions to existing records.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tenteen/tenteen/internal/auth"
	"github.com/tenteen/tenteen/internal/catalog"
	"github.com/tenteen/tenteen/internal/storage"
)

// ErrInvalidEdit is returned for edits with unusable values.
var ErrInvalidEdit = errors.New("invalid edit")

// Decide returns the initial status of an upload. Elevated uploaders are
// always approved; otherwise the global auto-approve flag decides.
func Decide(role auth.Role, autoApprove bool) catalog.Status {
	if role.Elevated() {
		return catalog.StatusApproved
	}
	if autoApprove {
		return catalog.StatusApproved
	}
	return catalog.StatusPending
}

// EditRequest patches descriptive fields. Nil fields are left unchanged; an
// empty artist or album id clears the reference.
type EditRequest struct {
	Title    *string   `json:"title,omitempty"`
	Language *string   `json:"songLanguage,omitempty"`
	ArtistID *string   `json:"artistId,omitempty"`
	AlbumID  *string   `json:"albumId,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

// Service applies reviewer decisions to catalog records and their blobs.
type Service struct {
	store  catalog.Store
	blobs  *storage.Set
	logger *slog.Logger
}

// NewService creates a moderation service.
func NewService(log *slog.Logger, store catalog.Store, blobs *storage.Set) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: log.With(slog.String("service", "moderation")),
	}
}

// Approve marks a record approved. Approving an approved record is a no-op.
func (s *Service) Approve(ctx context.Context, id string) (catalog.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return catalog.Record{}, err
	}
	if rec.Status == catalog.StatusApproved {
		return rec, nil
	}
	rec, err = s.store.SetStatus(ctx, id, catalog.StatusApproved)
	if err != nil {
		return catalog.Record{}, err
	}
	s.logger.Info("record approved", slog.String("id", id))
	return rec, nil
}

// Reject marks a record rejected, removes its blobs and then the record.
// Blob removal is best-effort; only catalog failures are returned.
func (s *Service) Reject(ctx context.Context, id string) error {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.store.SetStatus(ctx, id, catalog.StatusRejected); err != nil {
		return err
	}
	s.blobs.DeleteBestEffort(ctx, s.logger, rec.StorageBackend, rec.AudioLocator, storage.CategoryAudio)
	if rec.HasCover {
		s.blobs.DeleteBestEffort(ctx, s.logger, rec.CoverBackend, rec.CoverLocator, storage.CategoryImage)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	s.logger.Info("record rejected", slog.String("id", id), slog.Bool("had_cover", rec.HasCover))
	return nil
}

// Edit applies req to the record's descriptive fields.
func (s *Service) Edit(ctx context.Context, id string, req EditRequest) (catalog.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return catalog.Record{}, err
	}
	details := catalog.Details{
		Title:    rec.Title,
		Language: rec.Language,
		ArtistID: rec.ArtistID,
		AlbumID:  rec.AlbumID,
		Tags:     rec.Tags,
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return catalog.Record{}, fmt.Errorf("%w: title must not be empty", ErrInvalidEdit)
		}
		details.Title = title
	}
	if req.Language != nil {
		details.Language = strings.TrimSpace(*req.Language)
		if details.Language == "" {
			details.Language = catalog.DefaultLanguage
		}
	}
	if req.ArtistID != nil {
		details.ArtistID = strings.TrimSpace(*req.ArtistID)
		if err := catalog.ValidateReferenceID("artistId", details.ArtistID); err != nil {
			return catalog.Record{}, fmt.Errorf("%w: %w", ErrInvalidEdit, err)
		}
	}
	if req.AlbumID != nil {
		details.AlbumID = strings.TrimSpace(*req.AlbumID)
		if err := catalog.ValidateReferenceID("albumId", details.AlbumID); err != nil {
			return catalog.Record{}, fmt.Errorf("%w: %w", ErrInvalidEdit, err)
		}
	}
	if req.Tags != nil {
		details.Tags = CleanTags(*req.Tags)
	}
	return s.store.UpdateDetails(ctx, id, details)
}

// ApproveAll approves every pending record and returns how many changed.
func (s *Service) ApproveAll(ctx context.Context) (int64, error) {
	n, err := s.store.ApproveAllPending(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("pending records approved", slog.Int64("count", n))
	return n, nil
}

// ListPending returns pending records, newest first.
func (s *Service) ListPending(ctx context.Context, page, limit int) (catalog.Page, error) {
	return s.store.List(ctx, catalog.ListQuery{Status: catalog.StatusPending, Page: page, Limit: limit})
}

// CleanTags trims tags and drops empty and repeated entries.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
