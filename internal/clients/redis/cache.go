// Package redis provides an optional result cache for classifier output.
// When REDIS_ADDR is unset the cache is a no-op and every lookup misses.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yeoul-labs/alimguard-backend/internal/pkg/ctxutil"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/envutil"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
)

// Cache wraps a redis client behind nil-safe JSON get/set helpers.
// A nil *Cache is valid and behaves as an always-miss cache.
type Cache struct {
	log    *logger.Logger
	client *goredis.Client
	ttl    time.Duration
}

// NewFromEnv connects when REDIS_ADDR is set, returns nil otherwise.
// A failed ping also yields nil so a broken redis never blocks startup.
func NewFromEnv(ctx context.Context, log *logger.Logger) *Cache {
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		log.Info("REDIS_ADDR not set, classifier cache disabled")
		return nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
	})

	pingCtx, cancel := context.WithTimeout(ctxutil.Default(ctx), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, classifier cache disabled", "addr", addr, "error", err.Error())
		_ = client.Close()
		return nil
	}

	ttl := time.Duration(envutil.Int("REDIS_CACHE_TTL_SECONDS", 3600)) * time.Second
	log.Info("redis cache connected", "addr", addr, "ttl", ttl.String())
	return &Cache{
		log:    log.With("service", "RedisCache"),
		client: client,
		ttl:    ttl,
	}
}

// GetJSON loads key into out. Returns false on miss, on a nil cache, or
// on any redis/decode error; errors never propagate to the caller.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) bool {
	if c == nil || c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctxutil.Default(ctx), key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("cache get failed", "key", key, "error", err.Error())
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn("cache entry corrupt, ignoring", "key", key, "error", err.Error())
		return false
	}
	return true
}

// SetJSON stores val under key with the configured TTL. Best effort.
func (c *Cache) SetJSON(ctx context.Context, key string, val any) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "error", err.Error())
		return
	}
	if err := c.client.Set(ctxutil.Default(ctx), key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "key", key, "error", err.Error())
	}
}

// Close releases the underlying connection pool.
func (c *Cache) Close() {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Close()
}
