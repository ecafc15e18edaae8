// Package cache provides a small byte-oriented Redis cache.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	DB       int
	Password string
}

// Redis is a cache backed by a Redis client.
type Redis struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewRedis creates a client. It does not dial until first use.
func NewRedis(log *slog.Logger, cfg Config) *Redis {
	if log == nil {
		log = slog.Default()
	}
	return &Redis{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			DB:       cfg.DB,
			Password: cfg.Password,
		}),
		logger: log.With(slog.String("component", "cache")),
	}
}

// Ping checks connectivity.
func (c *Redis) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (c *Redis) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Get returns nil, nil on a miss.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		c.logger.Debug("cache get failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}
	return b, nil
}

// Set stores val. A zero ttl keeps the key until deleted.
func (c *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		c.logger.Debug("cache set failed", slog.String("key", key), slog.Any("error", err))
		return err
	}
	return nil
}

// Del removes keys.
func (c *Redis) Del(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Debug("cache del failed", slog.Any("keys", keys), slog.Any("error", err))
		return err
	}
	return nil
}
