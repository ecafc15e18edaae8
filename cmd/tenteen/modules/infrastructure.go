package modules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/tenteen/tenteen/internal/boot"
	"github.com/tenteen/tenteen/internal/cache"
	"github.com/tenteen/tenteen/internal/config"
	"github.com/tenteen/tenteen/internal/db"
	dbsqlc "github.com/tenteen/tenteen/internal/db/sqlc"
	"github.com/tenteen/tenteen/internal/logger"
)

// ConfigPath is the TOML file the application is configured from.
type ConfigPath string

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		boot.ProvideRuntimeConfig,
		provideDBConn,
		provideDBQueries,
		provideRedis,
	),
)

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

func provideConfig(path ConfigPath) (config.Config, error) {
	return LoadConfig(string(path))
}

// LoadConfig reads .env, the TOML file at path and the environment overrides.
func LoadConfig(path string) (config.Config, error) {
	if err := boot.LoadDotEnv(""); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	boot.ApplyEnv(&cfg)
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config, rc *boot.RuntimeConfig) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), db.DSN(cfg.Postgres, rc.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideDBQueries(conn *pgxpool.Pool) *dbsqlc.Queries {
	return dbsqlc.New(conn)
}

// provideRedis returns nil when no address is configured; the settings
// service then reads the policy from Postgres on every request.
func provideRedis(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) *cache.Redis {
	if cfg.Redis.Addr == "" {
		log.Info("redis disabled, upload policy is not cached")
		return nil
	}
	rdb := cache.NewRedis(log, cache.Config{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx); err != nil {
				log.Warn("redis unreachable, continuing without a warm cache", slog.Any("error", err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})
	return rdb
}
