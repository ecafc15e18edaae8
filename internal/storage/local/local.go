// Package local implements the storage provider backed by two flat directories
// on the local filesystem, one per blob category.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tenteen/tenteen/internal/storage"
)

// TempPrefix marks in-flight writes inside the category directories.
const TempPrefix = ".upload-"

// Provider stores blobs under <root>/audio and <root>/images.
type Provider struct {
	root   string
	dirs   map[storage.Category]string
	logger *slog.Logger
}

var (
	_ storage.Provider     = (*Provider)(nil)
	_ storage.RangeReader  = (*Provider)(nil)
	_ storage.StaleCleaner = (*Provider)(nil)
)

// New creates the provider and ensures its directories exist.
func New(log *slog.Logger, root string) (*Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("local storage root is required")
	}
	p := &Provider{
		root: root,
		dirs: map[storage.Category]string{
			storage.CategoryAudio: filepath.Join(root, "audio"),
			storage.CategoryImage: filepath.Join(root, "images"),
		},
		logger: log.With(slog.String("storage", "local")),
	}
	for _, dir := range p.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure %s: %w", dir, err)
		}
	}
	return p, nil
}

// Backend implements storage.Provider.
func (p *Provider) Backend() storage.Backend {
	return storage.BackendLocal
}

// Root returns the configured root directory.
func (p *Provider) Root() string {
	return p.root
}

// Save writes to a temp file in the category directory and renames it into
// place, replacing any previous blob with the same name.
func (p *Provider) Save(ctx context.Context, r io.Reader, _ int64, name string, category storage.Category, _ string) (storage.Blob, error) {
	if err := storage.ValidateName(name); err != nil {
		return storage.Blob{}, err
	}
	dir, err := p.dir(category)
	if err != nil {
		return storage.Blob{}, err
	}
	if err := ctx.Err(); err != nil {
		return storage.Blob{}, err
	}

	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return storage.Blob{}, storage.Unavailable("create temp file", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return storage.Blob{}, ctxErr
		}
		return storage.Blob{}, storage.Unavailable("write blob", err)
	}
	if err := tmp.Sync(); err != nil {
		return storage.Blob{}, storage.Unavailable("sync blob", err)
	}
	if err := tmp.Close(); err != nil {
		return storage.Blob{}, storage.Unavailable("close blob", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		return storage.Blob{}, storage.Unavailable("commit blob", err)
	}
	committed = true

	return storage.Blob{Locator: name, Backend: storage.BackendLocal, Size: written}, nil
}

// Stat implements storage.Provider.
func (p *Provider) Stat(_ context.Context, locator string, category storage.Category) (storage.Info, error) {
	path, name, err := p.path(locator, category)
	if err != nil {
		return storage.Info{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.Info{}, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
		}
		return storage.Info{}, storage.Unavailable("stat blob", err)
	}
	if fi.IsDir() {
		return storage.Info{}, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	return storage.Info{Locator: name, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// ReadRange returns a reader over the inclusive window [start, end].
func (p *Provider) ReadRange(_ context.Context, locator string, category storage.Category, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid range %d-%d", start, end)
	}
	path, name, err := p.path(locator, category)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
		}
		return nil, storage.Unavailable("open blob", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, storage.Unavailable("stat blob", err)
	}
	if end >= fi.Size() {
		// The blob changed since the caller sized the range.
		_ = f.Close()
		return nil, storage.Unavailable("read range", fmt.Errorf("range %d-%d exceeds blob size %d", start, end, fi.Size()))
	}
	return &sectionReadCloser{
		SectionReader: io.NewSectionReader(f, start, end-start+1),
		closer:        f,
	}, nil
}

// Delete implements storage.Provider. Legacy locators holding a path such as
// "/uploads/audio/x.mp3" are reduced to their base name first.
func (p *Provider) Delete(_ context.Context, locator string, category storage.Category) error {
	path, _, err := p.path(locator, category)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storage.Unavailable("delete blob", err)
	}
	return nil
}

// List implements storage.Provider. In-flight temp files are skipped.
func (p *Provider) List(ctx context.Context, category storage.Category, fn func(storage.Info) error) error {
	dir, err := p.dir(category)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return storage.Unavailable("list blobs", err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), TempPrefix) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return storage.Unavailable("stat blob", err)
		}
		if err := fn(storage.Info{Locator: entry.Name(), Size: fi.Size(), ModTime: fi.ModTime()}); err != nil {
			return err
		}
	}
	return nil
}

// RemoveStale implements storage.StaleCleaner for temp files abandoned by
// interrupted saves.
func (p *Provider) RemoveStale(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, category := range storage.Categories {
		dir, err := p.dir(category)
		if err != nil {
			return removed, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, storage.Unavailable("list temp files", err)
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if entry.IsDir() || !strings.HasPrefix(entry.Name(), TempPrefix) {
				continue
			}
			fi, err := entry.Info()
			if err != nil || !fi.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
				return removed, storage.Unavailable("remove temp file", err)
			}
			removed++
			p.logger.Info("stale temp file removed", slog.String("category", string(category)), slog.String("name", entry.Name()))
		}
	}
	return removed, nil
}

func (p *Provider) dir(category storage.Category) (string, error) {
	dir, ok := p.dirs[category]
	if !ok {
		return "", fmt.Errorf("unknown blob category %q", category)
	}
	return dir, nil
}

func (p *Provider) path(locator string, category storage.Category) (string, string, error) {
	dir, err := p.dir(category)
	if err != nil {
		return "", "", err
	}
	name := storage.BaseName(locator)
	if err := storage.ValidateName(name); err != nil {
		return "", "", err
	}
	return filepath.Join(dir, name), name, nil
}

type sectionReadCloser struct {
	*io.SectionReader
	closer io.Closer
}

func (s *sectionReadCloser) Close() error {
	return s.closer.Close()
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
