// Package storage defines the Provider interface for blob storage backends.
//
// Backends form a closed set (local disk, S3-compatible object store). They do
// not share a capability surface: only the local backend can serve byte ranges,
// and only the object store can hand out a URL that bypasses this service.
// Both capabilities are exposed as separate interfaces registered per backend
// on a Set, so callers branch on the backend recorded with a blob.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Backend discriminates the storage backend that owns a blob.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
)

// ParseBackend validates a configured backend name.
func ParseBackend(value string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(value))) {
	case BackendLocal, "":
		return BackendLocal, nil
	case BackendS3:
		return BackendS3, nil
	default:
		return "", fmt.Errorf("unknown storage backend %q (use: local, s3)", value)
	}
}

// Category partitions blobs into independent namespaces.
type Category string

const (
	CategoryAudio Category = "audio"
	CategoryImage Category = "image"
)

// Categories lists every category in a stable order.
var Categories = []Category{CategoryAudio, CategoryImage}

var (
	// ErrNotFound is returned when the addressed blob does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidLocator is returned for names that are not a single path element.
	ErrInvalidLocator = errors.New("invalid blob locator")
	// ErrUnavailable wraps I/O and remote failures; callers may retry.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrUnsupported is returned when a backend lacks a requested capability.
	ErrUnsupported = errors.New("storage capability not supported")
)

// Blob describes a freshly written blob.
type Blob struct {
	Locator string  `json:"locator"`
	Backend Backend `json:"backend"`
	Size    int64   `json:"size"`
}

// Info is the stat result for a stored blob.
type Info struct {
	Locator string
	Size    int64
	ModTime time.Time
}

// Provider abstracts blob storage operations common to every backend.
type Provider interface {
	// Backend reports the discriminator recorded alongside blobs written here.
	Backend() Backend
	// Save writes r under a locator derived from name. Overwriting an existing
	// blob with the same name succeeds. size may be -1 when unknown.
	Save(ctx context.Context, r io.Reader, size int64, name string, category Category, contentType string) (Blob, error)
	// Stat returns the size of the blob at locator.
	Stat(ctx context.Context, locator string, category Category) (Info, error)
	// Delete removes the blob at locator. Deleting a missing blob is not an error.
	Delete(ctx context.Context, locator string, category Category) error
	// List calls fn for every blob stored in category.
	List(ctx context.Context, category Category, fn func(Info) error) error
}

// RangeReader is implemented by backends that can serve inclusive byte windows.
type RangeReader interface {
	// ReadRange returns exactly the bytes [start, end] of the blob at locator.
	ReadRange(ctx context.Context, locator string, category Category, start, end int64) (io.ReadCloser, error)
}

// DirectURLer is implemented by backends that can address blobs without this service.
type DirectURLer interface {
	// DirectURL returns a URL clients can fetch the blob from.
	DirectURL(ctx context.Context, locator string, category Category) (string, error)
}

// StaleCleaner is implemented by backends that stage writes in scratch files a
// crash can leave behind.
type StaleCleaner interface {
	// RemoveStale deletes scratch files last modified before cutoff and
	// returns how many were removed.
	RemoveStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// ValidateName reports whether name can be used as a blob name: a single,
// non-empty path element without separators.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidLocator, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidLocator, name)
	}
	return nil
}

// BaseName reduces a locator in either the legacy bare-filename shape or a
// structured path shape ("audio/x.mp3", "/uploads/images/x.jpg") to its final element.
func BaseName(locator string) string {
	locator = strings.ReplaceAll(strings.TrimSpace(locator), `\`, "/")
	locator = strings.TrimRight(locator, "/")
	if idx := strings.LastIndex(locator, "/"); idx >= 0 {
		return locator[idx+1:]
	}
	return locator
}
