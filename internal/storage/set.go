package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Set holds the providers available to this deployment, keyed by backend,
// together with the capability views each backend registered explicitly.
// Primary is the backend new blobs are written to; the others stay reachable
// so records written before a backend switch can still be served and deleted.
type Set struct {
	primary   Backend
	providers map[Backend]Provider
	ranges    map[Backend]RangeReader
	urls      map[Backend]DirectURLer
}

// NewSet creates a set whose writes go to primary.
func NewSet(primary Provider) *Set {
	s := &Set{
		primary:   primary.Backend(),
		providers: map[Backend]Provider{},
		ranges:    map[Backend]RangeReader{},
		urls:      map[Backend]DirectURLer{},
	}
	s.providers[primary.Backend()] = primary
	return s
}

// Add registers an additional provider. It does not change the primary backend.
func (s *Set) Add(p Provider) {
	s.providers[p.Backend()] = p
}

// AddRangeReader registers the byte-range capability of backend.
func (s *Set) AddRangeReader(backend Backend, r RangeReader) {
	s.ranges[backend] = r
}

// AddDirectURLer registers the direct URL capability of backend.
func (s *Set) AddDirectURLer(backend Backend, u DirectURLer) {
	s.urls[backend] = u
}

// Primary returns the provider new blobs are written to.
func (s *Set) Primary() Provider {
	return s.providers[s.primary]
}

// Get returns the provider for backend.
func (s *Set) Get(backend Backend) (Provider, error) {
	p, ok := s.providers[backend]
	if !ok {
		return nil, fmt.Errorf("%w: backend %q not configured", ErrUnsupported, backend)
	}
	return p, nil
}

// RangeReader returns the byte-range capability registered for backend.
func (s *Set) RangeReader(backend Backend) (RangeReader, error) {
	r, ok := s.ranges[backend]
	if !ok {
		return nil, fmt.Errorf("%w: backend %q cannot read ranges", ErrUnsupported, backend)
	}
	return r, nil
}

// DirectURLer returns the direct URL capability registered for backend.
func (s *Set) DirectURLer(backend Backend) (DirectURLer, error) {
	u, ok := s.urls[backend]
	if !ok {
		return nil, fmt.Errorf("%w: backend %q has no direct urls", ErrUnsupported, backend)
	}
	return u, nil
}

// All returns every registered provider, primary first.
func (s *Set) All() []Provider {
	out := make([]Provider, 0, len(s.providers))
	out = append(out, s.providers[s.primary])
	for backend, p := range s.providers {
		if backend != s.primary {
			out = append(out, p)
		}
	}
	return out
}

// DeleteBestEffort removes a blob and logs failures instead of returning them.
// Storage cleanup must never fail the catalog mutation it accompanies.
func (s *Set) DeleteBestEffort(ctx context.Context, log *slog.Logger, backend Backend, locator string, category Category) {
	if locator == "" {
		return
	}
	p, err := s.Get(backend)
	if err != nil {
		log.Warn("blob delete skipped",
			slog.String("backend", string(backend)),
			slog.String("category", string(category)),
			slog.Any("error", err))
		return
	}
	if err := p.Delete(ctx, locator, category); err != nil {
		log.Warn("blob delete failed",
			slog.String("backend", string(backend)),
			slog.String("category", string(category)),
			slog.String("locator", locator),
			slog.Any("error", err))
	}
}
