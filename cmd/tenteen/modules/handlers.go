package modules

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/tenteen/tenteen/internal/cache"
	"github.com/tenteen/tenteen/internal/handlers"
	"github.com/tenteen/tenteen/internal/ingest"
	"github.com/tenteen/tenteen/internal/moderation"
	"github.com/tenteen/tenteen/internal/ratelimit"
	"github.com/tenteen/tenteen/internal/reaper"
	"github.com/tenteen/tenteen/internal/server"
	"github.com/tenteen/tenteen/internal/settings"
)

var HandlersModule = fx.Module(
	"handlers",
	fx.Provide(
		annotateHandler(providePingHandler),
		annotateHandler(provideUploadHandler),
		annotateHandler(provideAdminHandler),
		annotateHandler(handlers.NewStreamHandler),
	),
)

// annotateHandler wraps a handler provider function with fx.Annotate
// to register it as a server.Handler with the correct group tag
func annotateHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func providePingHandler(log *slog.Logger, pool *pgxpool.Pool, rdb *cache.Redis) *handlers.PingHandler {
	checks := map[string]handlers.Pinger{"postgres": pool}
	if rdb != nil {
		checks["redis"] = rdb
	}
	return handlers.NewPingHandler(log, checks)
}

func provideUploadHandler(log *slog.Logger, pipeline *ingest.Pipeline, policy *settings.Service, limiter *ratelimit.Limiter, cfg ingest.Config) *handlers.UploadHandler {
	return handlers.NewUploadHandler(log, pipeline, policy, limiter, cfg)
}

func provideAdminHandler(log *slog.Logger, mod *moderation.Service, policy *settings.Service, r *reaper.Reaper) *handlers.AdminHandler {
	return handlers.NewAdminHandler(log, mod, policy, r)
}
