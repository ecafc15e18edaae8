// Package catalog persists the records that tie stored audio blobs to their
// content digest, technical metadata and moderation state.
package catalog

import (
	"context"

	"github.com/tenteen/tenteen/internal/storage"
)

// Store is the catalog persistence contract. Create must enforce digest
// uniqueness and report a conflict as ErrDuplicate.
type Store interface {
	Create(ctx context.Context, rec NewRecord) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	GetByDigest(ctx context.Context, digest string) (Record, error)
	SetStatus(ctx context.Context, id string, status Status) (Record, error)
	UpdateDetails(ctx context.Context, id string, details Details) (Record, error)
	Delete(ctx context.Context, id string) error
	ApproveAllPending(ctx context.Context) (int64, error)
	List(ctx context.Context, q ListQuery) (Page, error)
	IncrementPlays(ctx context.Context, id string) error
	LocatorInUse(ctx context.Context, backend storage.Backend, locator string) (bool, error)
}
