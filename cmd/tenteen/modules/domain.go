package modules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/tenteen/tenteen/internal/cache"
	"github.com/tenteen/tenteen/internal/catalog"
	"github.com/tenteen/tenteen/internal/config"
	dbsqlc "github.com/tenteen/tenteen/internal/db/sqlc"
	"github.com/tenteen/tenteen/internal/ingest"
	"github.com/tenteen/tenteen/internal/media"
	"github.com/tenteen/tenteen/internal/moderation"
	"github.com/tenteen/tenteen/internal/ratelimit"
	"github.com/tenteen/tenteen/internal/reaper"
	"github.com/tenteen/tenteen/internal/settings"
	"github.com/tenteen/tenteen/internal/storage"
)

var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		fx.Annotate(catalog.NewPostgresStore, fx.As(new(catalog.Store))),
		provideSettingsService,
		media.NewExtractor,
		provideIngestConfig,
		providePipeline,
		moderation.NewService,
		provideLimiter,
		provideReaper,
	),
)

func provideSettingsService(log *slog.Logger, queries *dbsqlc.Queries, rdb *cache.Redis, cfg config.Config) *settings.Service {
	var c settings.Cache
	if rdb != nil {
		c = rdb
	}
	return settings.NewService(log, settings.NewPostgresStore(queries), c, cfg.Redis.CacheDuration())
}

func provideIngestConfig(cfg config.Config) ingest.Config {
	return ingest.Config{
		MaxUploadBytes: cfg.Upload.MaxUploadBytes(),
		CoverMaxBytes:  cfg.Upload.CoverMaxBytes(),
	}
}

func providePipeline(log *slog.Logger, store catalog.Store, blobs *storage.Set, extractor *media.Extractor, policy *settings.Service, cfg ingest.Config) *ingest.Pipeline {
	return ingest.NewPipeline(log, store, blobs, extractor, policy, cfg)
}

func provideLimiter(cfg config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Upload.RatePerMinute)
}

func provideReaper(log *slog.Logger, store catalog.Store, blobs *storage.Set, cfg config.Config) *reaper.Reaper {
	return reaper.New(log, store, blobs, cfg.Reaper.GraceDuration())
}
