// Package catalogtest provides an in-memory catalog.Store for tests.
package catalogtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tenteen/tenteen/internal/catalog"
	"github.com/tenteen/tenteen/internal/storage"
)

// Store is a concurrency-safe in-memory catalog with a unique digest index.
type Store struct {
	mu       sync.Mutex
	records  map[string]catalog.Record
	byDigest map[string]string
	now      func() time.Time

	// BeforeCreate runs inside Create before the uniqueness check, without
	// the lock held. Returning an error fails the create.
	BeforeCreate func(rec catalog.NewRecord) error
}

var _ catalog.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	return &Store{
		records:  map[string]catalog.Record{},
		byDigest: map[string]string{},
		now: func() time.Time {
			tick++
			return start.Add(time.Duration(tick) * time.Second)
		},
	}
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Put inserts rec as-is, bypassing validation.
func (s *Store) Put(rec catalog.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	s.byDigest[rec.Digest] = rec.ID
}

func (s *Store) Create(_ context.Context, rec catalog.NewRecord) (catalog.Record, error) {
	if s.BeforeCreate != nil {
		if err := s.BeforeCreate(rec); err != nil {
			return catalog.Record{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byDigest[rec.Digest]; ok {
		return catalog.Record{}, fmt.Errorf("%w: digest %s", catalog.ErrDuplicate, rec.Digest)
	}
	now := s.now()
	language := rec.Language
	if strings.TrimSpace(language) == "" {
		language = catalog.DefaultLanguage
	}
	tags := append([]string{}, rec.Tags...)
	out := catalog.Record{
		ID:               uuid.NewString(),
		Digest:           rec.Digest,
		StorageBackend:   rec.StorageBackend,
		AudioLocator:     rec.AudioLocator,
		CoverLocator:     rec.CoverLocator,
		HasCover:         rec.CoverLocator != "",
		Title:            rec.Title,
		Language:         language,
		ArtistID:         rec.ArtistID,
		AlbumID:          rec.AlbumID,
		Tags:             tags,
		Duration:         rec.Duration,
		Bitrate:          rec.Bitrate,
		Format:           rec.Format,
		SizeBytes:        rec.SizeBytes,
		Status:           rec.Status,
		UploadedBy:       rec.UploadedBy,
		OriginalFilename: rec.OriginalFilename,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if out.HasCover {
		out.CoverBackend = rec.CoverBackend
	}
	s.records[out.ID] = out
	s.byDigest[out.Digest] = out.ID
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (catalog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return catalog.Record{}, catalog.ErrNotFound
	}
	return rec, nil
}

func (s *Store) GetByDigest(_ context.Context, digest string) (catalog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byDigest[digest]
	if !ok {
		return catalog.Record{}, catalog.ErrNotFound
	}
	return s.records[id], nil
}

func (s *Store) SetStatus(_ context.Context, id string, status catalog.Status) (catalog.Record, error) {
	return s.update(id, func(rec *catalog.Record) { rec.Status = status })
}

func (s *Store) UpdateDetails(_ context.Context, id string, d catalog.Details) (catalog.Record, error) {
	return s.update(id, func(rec *catalog.Record) {
		rec.Title = d.Title
		rec.Language = d.Language
		rec.ArtistID = d.ArtistID
		rec.AlbumID = d.AlbumID
		rec.Tags = append([]string{}, d.Tags...)
	})
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return catalog.ErrNotFound
	}
	delete(s.records, id)
	delete(s.byDigest, rec.Digest)
	return nil
}

func (s *Store) ApproveAllPending(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.records {
		if rec.Status == catalog.StatusPending {
			rec.Status = catalog.StatusApproved
			rec.UpdatedAt = s.now()
			s.records[id] = rec
			n++
		}
	}
	return n, nil
}

func (s *Store) List(_ context.Context, q catalog.ListQuery) (catalog.Page, error) {
	q = q.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []catalog.Record
	for _, rec := range s.records {
		if q.Status == "" || rec.Status == q.Status {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	page := catalog.Page{Items: []catalog.Record{}, Total: int64(len(matched)), Page: q.Page, Limit: q.Limit}
	start := (q.Page - 1) * q.Limit
	if start < len(matched) {
		end := min(start+q.Limit, len(matched))
		page.Items = append(page.Items, matched[start:end]...)
	}
	return page, nil
}

func (s *Store) IncrementPlays(_ context.Context, id string) error {
	_, err := s.update(id, func(rec *catalog.Record) { rec.Plays++ })
	return err
}

func (s *Store) LocatorInUse(_ context.Context, backend storage.Backend, locator string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.StorageBackend == backend && storage.BaseName(rec.AudioLocator) == storage.BaseName(locator) {
			return true, nil
		}
		if rec.HasCover && rec.CoverBackend == backend && storage.BaseName(rec.CoverLocator) == storage.BaseName(locator) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) update(id string, fn func(rec *catalog.Record)) (catalog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return catalog.Record{}, catalog.ErrNotFound
	}
	fn(&rec)
	rec.UpdatedAt = s.now()
	s.records[id] = rec
	return rec, nil
}
