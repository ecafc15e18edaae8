// Package settings owns the global upload policy: the auto-approve flag, the
// upload size limit and the accepted formats.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tenteen/tenteen/internal/media"
)

const cacheKey = "tenteen:settings:upload"

// ErrInvalidPolicy is returned for rejected updates.
var ErrInvalidPolicy = errors.New("invalid upload policy")

// Store persists the policy.
type Store interface {
	Load(ctx context.Context) (Policy, error)
	Save(ctx context.Context, p Policy) (Policy, error)
}

// Cache is the subset of a key/value cache the service uses. Get returns
// nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Service reads and updates the upload policy.
type Service struct {
	store  Store
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewService creates the policy service. cache may be nil.
func NewService(log *slog.Logger, store Store, cache Cache, ttl time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: log.With(slog.String("service", "settings")),
	}
}

// Get returns the current policy. Cache failures fall through to the store.
func (s *Service) Get(ctx context.Context) (Policy, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.logger.Warn("policy cache read failed", slog.Any("error", err))
		} else if raw != nil {
			var p Policy
			if err := json.Unmarshal(raw, &p); err == nil {
				return p, nil
			}
		}
	}
	p, err := s.store.Load(ctx)
	if err != nil {
		return Policy{}, fmt.Errorf("load upload policy: %w", err)
	}
	p = normalize(p)
	if s.cache != nil {
		if raw, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.ttl); err != nil {
				s.logger.Warn("policy cache write failed", slog.Any("error", err))
			}
		}
	}
	return p, nil
}

// Update applies req and invalidates the cached policy.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (Policy, error) {
	current, err := s.store.Load(ctx)
	if err != nil {
		return Policy{}, fmt.Errorf("load upload policy: %w", err)
	}
	current = normalize(current)
	if req.AutoApprove != nil {
		current.AutoApprove = *req.AutoApprove
	}
	if req.MaxUploadMB != nil {
		if *req.MaxUploadMB <= 0 {
			return Policy{}, fmt.Errorf("%w: max upload size must be positive", ErrInvalidPolicy)
		}
		current.MaxUploadMB = *req.MaxUploadMB
	}
	if req.AllowedFormats != nil {
		formats, err := parseFormats(req.AllowedFormats)
		if err != nil {
			return Policy{}, err
		}
		current.AllowedFormats = formats
	}
	saved, err := s.store.Save(ctx, current)
	if err != nil {
		return Policy{}, fmt.Errorf("save upload policy: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey); err != nil {
			s.logger.Warn("policy cache invalidation failed", slog.Any("error", err))
		}
	}
	s.logger.Info("upload policy updated",
		slog.Bool("auto_approve", saved.AutoApprove),
		slog.Int("max_upload_mb", saved.MaxUploadMB))
	return normalize(saved), nil
}

func parseFormats(values []string) ([]media.Format, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: at least one format is required", ErrInvalidPolicy)
	}
	seen := map[media.Format]bool{}
	out := make([]media.Format, 0, len(values))
	for _, v := range values {
		f, err := media.ParseFormat(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

func normalize(p Policy) Policy {
	if p.MaxUploadMB <= 0 {
		p.MaxUploadMB = DefaultMaxUploadMB
	}
	formats := make([]media.Format, 0, len(p.AllowedFormats))
	for _, f := range p.AllowedFormats {
		if f.Supported() {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		formats = append(formats, media.Formats...)
	}
	p.AllowedFormats = formats
	return p
}
