package modules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/fx"

	"github.com/tenteen/tenteen/internal/config"
	"github.com/tenteen/tenteen/internal/storage"
	"github.com/tenteen/tenteen/internal/storage/local"
	"github.com/tenteen/tenteen/internal/storage/s3"
)

var StorageModule = fx.Module(
	"storage",
	fx.Provide(provideStorage),
)

// provideStorage registers the local backend unconditionally and the object
// store whenever it is configured, so records written before a backend switch
// stay servable. New blobs go to the configured backend.
func provideStorage(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*storage.Set, error) {
	primary, err := storage.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}
	localProvider, err := local.New(log, cfg.Storage.Local.Root)
	if err != nil {
		return nil, err
	}

	var remote *s3.Provider
	s3cfg := cfg.Storage.S3
	if strings.TrimSpace(s3cfg.Bucket) != "" {
		remote, err = s3.New(log, s3.Config{
			Endpoint:      s3cfg.Endpoint,
			Region:        s3cfg.Region,
			Bucket:        s3cfg.Bucket,
			AccessKey:     s3cfg.AccessKey,
			SecretKey:     s3cfg.SecretKey,
			UseSSL:        s3cfg.UseSSL,
			PathStyle:     s3cfg.PathStyle,
			Prefix:        s3cfg.Prefix,
			PublicBaseURL: s3cfg.PublicBaseURL,
			PresignTTL:    s3cfg.PresignDuration(),
		})
		if err != nil {
			return nil, err
		}
	} else if primary == storage.BackendS3 {
		return nil, fmt.Errorf("storage backend s3 requires storage.s3.bucket")
	}

	var set *storage.Set
	if primary == storage.BackendS3 {
		set = storage.NewSet(remote)
		set.Add(localProvider)
	} else {
		set = storage.NewSet(localProvider)
		if remote != nil {
			set.Add(remote)
		}
	}
	set.AddRangeReader(storage.BackendLocal, localProvider)
	if remote != nil {
		set.AddDirectURLer(storage.BackendS3, remote)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := remote.EnsureBucket(ctx, s3cfg.Region); err != nil {
					if primary == storage.BackendS3 {
						return err
					}
					log.Warn("object store unavailable", slog.Any("error", err))
				}
				return nil
			},
		})
	}
	log.Info("storage ready",
		slog.String("primary", string(primary)),
		slog.String("local_root", localProvider.Root()),
		slog.Bool("s3", remote != nil))
	return set, nil
}
