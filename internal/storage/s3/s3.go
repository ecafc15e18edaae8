// Package s3 implements the storage provider backed by an S3-compatible object
// store (AWS S3, MinIO, R2). Blobs are addressed by namespaced object keys and
// delivered to clients through direct URLs rather than through this service.
package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tenteen/tenteen/internal/storage"
)

// Config holds connection and addressing settings.
type Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PathStyle     bool
	Prefix        string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// Provider stores blobs as objects in a single bucket.
type Provider struct {
	cl            *minio.Client
	bucket        string
	keys          KeyScheme
	publicBaseURL string
	presignTTL    time.Duration
	logger        *slog.Logger
}

var (
	_ storage.Provider    = (*Provider)(nil)
	_ storage.DirectURLer = (*Provider)(nil)
)

// New creates a provider. It does not contact the object store.
func New(log *slog.Logger, cfg Config) (*Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}
	cl, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Provider{
		cl:            cl,
		bucket:        cfg.Bucket,
		keys:          KeyScheme{Prefix: cfg.Prefix},
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		presignTTL:    ttl,
		logger:        log.With(slog.String("storage", "s3"), slog.String("bucket", cfg.Bucket)),
	}, nil
}

// Backend implements storage.Provider.
func (p *Provider) Backend() storage.Backend {
	return storage.BackendS3
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *Provider) EnsureBucket(ctx context.Context, region string) error {
	exists, err := p.cl.BucketExists(ctx, p.bucket)
	if err != nil {
		return storage.Unavailable("bucket exists", err)
	}
	if exists {
		return nil
	}
	if err := p.cl.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return storage.Unavailable("make bucket", err)
	}
	p.logger.Info("bucket created")
	return nil
}

// Save uploads r under the namespaced key for name. PutObject replaces any
// existing object, so a retried save of the same name succeeds.
func (p *Provider) Save(ctx context.Context, r io.Reader, size int64, name string, category storage.Category, contentType string) (storage.Blob, error) {
	if err := storage.ValidateName(name); err != nil {
		return storage.Blob{}, err
	}
	key, err := p.keys.Key(name, category)
	if err != nil {
		return storage.Blob{}, err
	}
	if size < 0 {
		size = -1
	}
	info, err := p.cl.PutObject(ctx, p.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return storage.Blob{}, ctxErr
		}
		return storage.Blob{}, storage.Unavailable("put object", err)
	}
	return storage.Blob{Locator: key, Backend: storage.BackendS3, Size: info.Size}, nil
}

// Stat implements storage.Provider.
func (p *Provider) Stat(ctx context.Context, locator string, category storage.Category) (storage.Info, error) {
	key, err := p.keys.Normalize(locator, category)
	if err != nil {
		return storage.Info{}, err
	}
	info, err := p.cl.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return storage.Info{}, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return storage.Info{}, storage.Unavailable("stat object", err)
	}
	return storage.Info{Locator: key, Size: info.Size, ModTime: info.LastModified}, nil
}

// Delete implements storage.Provider. Bare legacy filenames are mapped to
// their namespaced key before removal.
func (p *Provider) Delete(ctx context.Context, locator string, category storage.Category) error {
	key, err := p.keys.Normalize(locator, category)
	if err != nil {
		return err
	}
	if err := p.cl.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return storage.Unavailable("remove object", err)
	}
	return nil
}

// List implements storage.Provider.
func (p *Provider) List(ctx context.Context, category storage.Category, fn func(storage.Info) error) error {
	folder, err := p.keys.Folder(category)
	if err != nil {
		return err
	}
	objects := p.cl.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    folder + "/",
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return storage.Unavailable("list objects", obj.Err)
		}
		if err := fn(storage.Info{Locator: obj.Key, Size: obj.Size, ModTime: obj.LastModified}); err != nil {
			return err
		}
	}
	return nil
}

// DirectURL returns the public URL of the object when a public base URL is
// configured, and a presigned GET URL otherwise.
func (p *Provider) DirectURL(ctx context.Context, locator string, category storage.Category) (string, error) {
	key, err := p.keys.Normalize(locator, category)
	if err != nil {
		return "", err
	}
	if p.publicBaseURL != "" {
		return PublicURL(p.publicBaseURL, key), nil
	}
	u, err := p.cl.PresignedGetObject(ctx, p.bucket, key, p.presignTTL, url.Values{})
	if err != nil {
		return "", storage.Unavailable("presign object", err)
	}
	return u.String(), nil
}

// PublicURL joins base and an object key, escaping each key segment.
func PublicURL(base, key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// KeyScheme derives object keys: <prefix>/raw/songs/<name> for audio and
// <prefix>/image/covers/<name> for images.
type KeyScheme struct {
	Prefix string
}

// Folder returns the key prefix (without trailing slash) for category.
func (k KeyScheme) Folder(category storage.Category) (string, error) {
	var folder string
	switch category {
	case storage.CategoryAudio:
		folder = "raw/songs"
	case storage.CategoryImage:
		folder = "image/covers"
	default:
		return "", fmt.Errorf("unknown blob category %q", category)
	}
	prefix := strings.Trim(strings.TrimSpace(k.Prefix), "/")
	if prefix == "" {
		return folder, nil
	}
	return path.Join(prefix, folder), nil
}

// Key returns the object key for a bare name.
func (k KeyScheme) Key(name string, category storage.Category) (string, error) {
	if err := storage.ValidateName(name); err != nil {
		return "", err
	}
	folder, err := k.Folder(category)
	if err != nil {
		return "", err
	}
	return folder + "/" + name, nil
}

// Normalize accepts either a structured key (containing a slash) or a legacy
// bare filename and returns the object key.
func (k KeyScheme) Normalize(locator string, category storage.Category) (string, error) {
	locator = strings.TrimLeft(strings.TrimSpace(locator), "/")
	if locator == "" {
		return "", fmt.Errorf("%w: empty locator", storage.ErrInvalidLocator)
	}
	if strings.Contains(locator, "/") {
		for _, segment := range strings.Split(locator, "/") {
			if segment == "" || segment == "." || segment == ".." {
				return "", fmt.Errorf("%w: %q", storage.ErrInvalidLocator, locator)
			}
		}
		return locator, nil
	}
	return k.Key(locator, category)
}
