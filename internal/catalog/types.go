package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tenteen/tenteen/internal/media"
	"github.com/tenteen/tenteen/internal/storage"
)

// Status is the moderation state of a record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus validates a status name.
func ParseStatus(value string) (Status, error) {
	switch s := Status(value); s {
	case StatusPending, StatusApproved, StatusRejected:
		return s, nil
	default:
		return "", fmt.Errorf("unknown moderation status %q", value)
	}
}

// DefaultLanguage is stored when the uploader gave none.
const DefaultLanguage = "Unknown"

var (
	// ErrNotFound is returned for unknown record ids.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a record with the same digest exists.
	ErrDuplicate = errors.New("duplicate content")
	// ErrInvalidReference is returned for artist or album ids that are not UUIDs.
	ErrInvalidReference = errors.New("invalid reference id")
)

// ValidateReferenceID accepts an empty id or a UUID. field names the id in
// the returned error.
func ValidateReferenceID(field, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s must be a UUID", ErrInvalidReference, field)
	}
	return nil
}

// Record ties a stored audio blob to its digest, metadata and moderation state.
// Locators stay server-side and are never serialized.
type Record struct {
	ID               string          `json:"id"`
	Digest           string          `json:"hash"`
	StorageBackend   storage.Backend `json:"storage_backend"`
	AudioLocator     string          `json:"-"`
	CoverBackend     storage.Backend `json:"-"`
	CoverLocator     string          `json:"-"`
	HasCover         bool            `json:"has_cover"`
	Title            string          `json:"title"`
	Language         string          `json:"language"`
	ArtistID         string          `json:"artist_id,omitempty"`
	AlbumID          string          `json:"album_id,omitempty"`
	Tags             []string        `json:"tags"`
	Duration         float64         `json:"duration"`
	Bitrate          *int            `json:"bitrate"`
	Format           media.Format    `json:"format"`
	SizeBytes        int64           `json:"size_bytes"`
	Status           Status          `json:"status"`
	UploadedBy       string          `json:"uploaded_by"`
	OriginalFilename string          `json:"original_filename"`
	Plays            int64           `json:"plays"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewRecord is the input for creating a record after its blobs were written.
type NewRecord struct {
	Digest           string
	StorageBackend   storage.Backend
	AudioLocator     string
	CoverBackend     storage.Backend
	CoverLocator     string
	Title            string
	Language         string
	ArtistID         string
	AlbumID          string
	Tags             []string
	Duration         float64
	Bitrate          *int
	Format           media.Format
	SizeBytes        int64
	Status           Status
	UploadedBy       string
	OriginalFilename string
}

// Details are the descriptive fields a reviewer may edit.
type Details struct {
	Title    string
	Language string
	ArtistID string
	AlbumID  string
	Tags     []string
}

// ListQuery selects a page of records.
type ListQuery struct {
	Status Status
	Page   int
	Limit  int
}

// Normalize clamps paging values to sane defaults.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return q
}

// Page is one page of records.
type Page struct {
	Items []Record `json:"items"`
	Total int64    `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}
