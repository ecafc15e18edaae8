package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/tenteen/tenteen/internal/logger"
)

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c := NewRedis(logger.Discard(), Config{Addr: addr})
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := "tenteen:test:" + time.Now().Format("150405.000000000")
	if got, err := c.Get(ctx, key); err != nil || got != nil {
		t.Fatalf("miss: got %q, %v", got, err)
	}
	if err := c.Set(ctx, key, []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := c.Get(ctx, key); err != nil || string(got) != "v" {
		t.Fatalf("hit: got %q, %v", got, err)
	}
	if err := c.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if got, _ := c.Get(ctx, key); got != nil {
		t.Fatalf("key still present after del")
	}
}
