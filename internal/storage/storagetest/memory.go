// Package storagetest provides an in-memory storage.Provider for tests.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tenteen/tenteen/internal/storage"
)

type blobKey struct {
	category storage.Category
	name     string
}

type blob struct {
	data    []byte
	modTime time.Time
}

// Provider keeps blobs in memory. It implements storage.RangeReader and
// storage.DirectURLer so it can stand in for either backend.
type Provider struct {
	mu      sync.Mutex
	backend storage.Backend
	blobs   map[blobKey]blob

	// SaveErr, DeleteErr and StatErr, when set, are returned by the
	// corresponding operations.
	SaveErr   error
	DeleteErr error
	StatErr   error
	// URLBase is the prefix DirectURL returns; empty makes DirectURL fail.
	URLBase string
	// Saves and Deletes count successful calls.
	Saves   int
	Deletes int
}

var (
	_ storage.Provider    = (*Provider)(nil)
	_ storage.RangeReader = (*Provider)(nil)
	_ storage.DirectURLer = (*Provider)(nil)
)

// New returns an empty provider reporting backend.
func New(backend storage.Backend) *Provider {
	return &Provider{backend: backend, blobs: map[blobKey]blob{}}
}

func (p *Provider) Backend() storage.Backend { return p.backend }

func (p *Provider) Save(ctx context.Context, r io.Reader, _ int64, name string, category storage.Category, _ string) (storage.Blob, error) {
	if err := storage.ValidateName(name); err != nil {
		return storage.Blob{}, err
	}
	if err := ctx.Err(); err != nil {
		return storage.Blob{}, err
	}
	if p.SaveErr != nil {
		return storage.Blob{}, p.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.Blob{}, storage.Unavailable("read payload", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blobs[blobKey{category, name}] = blob{data: data, modTime: time.Now()}
	p.Saves++
	return storage.Blob{Locator: p.locator(name, category), Backend: p.backend, Size: int64(len(data))}, nil
}

func (p *Provider) Stat(_ context.Context, locator string, category storage.Category) (storage.Info, error) {
	if p.StatErr != nil {
		return storage.Info{}, p.StatErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	name := storage.BaseName(locator)
	b, ok := p.blobs[blobKey{category, name}]
	if !ok {
		return storage.Info{}, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	return storage.Info{Locator: name, Size: int64(len(b.data)), ModTime: b.modTime}, nil
}

func (p *Provider) Delete(_ context.Context, locator string, category storage.Category) error {
	if p.DeleteErr != nil {
		return p.DeleteErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.blobs, blobKey{category, storage.BaseName(locator)})
	p.Deletes++
	return nil
}

func (p *Provider) List(_ context.Context, category storage.Category, fn func(storage.Info) error) error {
	p.mu.Lock()
	var infos []storage.Info
	for k, b := range p.blobs {
		if k.category == category {
			infos = append(infos, storage.Info{Locator: k.name, Size: int64(len(b.data)), ModTime: b.modTime})
		}
	}
	p.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Locator < infos[j].Locator })
	for _, info := range infos {
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) ReadRange(_ context.Context, locator string, category storage.Category, start, end int64) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := storage.BaseName(locator)
	b, ok := p.blobs[blobKey{category, name}]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	if start < 0 || end < start || end >= int64(len(b.data)) {
		return nil, fmt.Errorf("invalid range %d-%d", start, end)
	}
	return io.NopCloser(bytes.NewReader(b.data[start : end+1])), nil
}

func (p *Provider) DirectURL(_ context.Context, locator string, _ storage.Category) (string, error) {
	if p.URLBase == "" {
		return "", storage.Unavailable("direct url", fmt.Errorf("no url base"))
	}
	return p.URLBase + "/" + storage.BaseName(locator), nil
}

// Has reports whether a blob named by locator exists in category.
func (p *Provider) Has(locator string, category storage.Category) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.blobs[blobKey{category, storage.BaseName(locator)}]
	return ok
}

// Count returns the number of blobs in category.
func (p *Provider) Count(category storage.Category) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for k := range p.blobs {
		if k.category == category {
			n++
		}
	}
	return n
}

// Age shifts the modification time of every blob into the past.
func (p *Provider) Age(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, b := range p.blobs {
		b.modTime = b.modTime.Add(-d)
		p.blobs[k] = b
	}
}

// Put stores data directly, bypassing SaveErr.
func (p *Provider) Put(name string, category storage.Category, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blobs[blobKey{category, name}] = blob{data: data, modTime: time.Now()}
}

func (p *Provider) locator(name string, category storage.Category) string {
	if p.backend == storage.BackendS3 {
		return "tenteen/" + string(category) + "/" + name
	}
	return name
}
