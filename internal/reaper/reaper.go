// Package reaper removes blobs that no catalog record references. Ingestion
// writes blobs before their record, so a crash between the two leaves
// orphans behind; a periodic sweep collects them once they are older than a
// grace period that comfortably covers an in-flight upload.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tenteen/tenteen/internal/storage"
)

// DefaultGrace is used when no grace period is configured.
const DefaultGrace = time.Hour

// LocatorIndex answers whether a blob is referenced by any record.
type LocatorIndex interface {
	LocatorInUse(ctx context.Context, backend storage.Backend, locator string) (bool, error)
}

// Result counts the outcome of one sweep. Stale counts abandoned temp files
// of interrupted writes.
type Result struct {
	Scanned int `json:"scanned"`
	Young   int `json:"young"`
	InUse   int `json:"in_use"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
	Stale   int `json:"stale"`
}

// Reaper sweeps every registered backend for unreferenced blobs.
type Reaper struct {
	index  LocatorIndex
	blobs  *storage.Set
	grace  time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New creates a reaper. A non-positive grace uses DefaultGrace.
func New(log *slog.Logger, index LocatorIndex, blobs *storage.Set, grace time.Duration) *Reaper {
	if log == nil {
		log = slog.Default()
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Reaper{
		index:  index,
		blobs:  blobs,
		grace:  grace,
		now:    time.Now,
		logger: log.With(slog.String("service", "reaper")),
	}
}

// Sweep scans every registered backend once. Overlapping sweeps are skipped.
func (r *Reaper) Sweep(ctx context.Context) (Result, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return Result{}, errors.New("sweep already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	var res Result
	cutoff := r.now().Add(-r.grace)
	for _, provider := range r.blobs.All() {
		for _, category := range storage.Categories {
			err := provider.List(ctx, category, func(info storage.Info) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				res.Scanned++
				if info.ModTime.After(cutoff) {
					res.Young++
					return nil
				}
				inUse, err := r.index.LocatorInUse(ctx, provider.Backend(), info.Locator)
				if err != nil {
					return fmt.Errorf("check locator %s: %w", info.Locator, err)
				}
				if inUse {
					res.InUse++
					return nil
				}
				if err := provider.Delete(ctx, info.Locator, category); err != nil {
					res.Failed++
					r.logger.Warn("orphan delete failed",
						slog.String("backend", string(provider.Backend())),
						slog.String("locator", info.Locator),
						slog.Any("error", err))
					return nil
				}
				res.Deleted++
				r.logger.Info("orphan blob deleted",
					slog.String("backend", string(provider.Backend())),
					slog.String("category", string(category)),
					slog.String("locator", info.Locator),
					slog.Int64("size", info.Size))
				return nil
			})
			if err != nil {
				return res, fmt.Errorf("sweep %s/%s: %w", provider.Backend(), category, err)
			}
		}
		if cleaner, ok := provider.(storage.StaleCleaner); ok {
			n, err := cleaner.RemoveStale(ctx, cutoff)
			res.Stale += n
			if err != nil {
				res.Failed++
				r.logger.Warn("stale temp cleanup failed",
					slog.String("backend", string(provider.Backend())),
					slog.Any("error", err))
			}
		}
	}
	return res, nil
}

// Start schedules Sweep on spec (standard cron syntax or a descriptor such as
// "@every 6h"). An empty spec leaves the reaper idle.
func (r *Reaper) Start(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		r.logger.Info("orphan sweep disabled")
		return nil
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(spec, r.runScheduled); err != nil {
		return fmt.Errorf("invalid reaper schedule %q: %w", spec, err)
	}
	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()
	c.Start()
	r.logger.Info("orphan sweep scheduled", slog.String("schedule", spec), slog.Duration("grace", r.grace))
	return nil
}

// Stop cancels the schedule and waits for a running sweep to finish or ctx to end.
func (r *Reaper) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (r *Reaper) runScheduled() {
	res, err := r.Sweep(context.Background())
	if err != nil {
		r.logger.Error("orphan sweep failed", slog.Any("error", err))
		return
	}
	r.logger.Info("orphan sweep finished",
		slog.Int("scanned", res.Scanned),
		slog.Int("deleted", res.Deleted),
		slog.Int("stale", res.Stale),
		slog.Int("failed", res.Failed))
}
