// Package rediscache caches serialized request views in Redis. The cache is
// strictly best-effort: every mutating operation invalidates the key after
// commit, and a Redis outage degrades reads to the database.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ride-market/internal/general/config"
	"ride-market/internal/general/logger"
)

// ViewCache stores request views keyed by request id.
type ViewCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// Connect builds a Redis client from cfg and verifies connectivity. A failed
// ping returns (nil, err); callers may run without the cache.
func Connect(ctx context.Context, cfg *config.Config, log *logger.Logger) (*ViewCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info(ctx, "redis_connected", "Connected to Redis", map[string]any{
		"addr": cfg.Redis.Addr,
		"ttl":  cfg.Redis.ViewTTL.String(),
	})

	return &ViewCache{client: client, ttl: cfg.Redis.ViewTTL, log: log}, nil
}

// Close releases the underlying client.
func (c *ViewCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func viewKey(requestID string) string {
	return "ridemarket:view:" + requestID
}

// Get returns the cached view body, or (nil, false) on miss or error.
func (c *ViewCache) Get(ctx context.Context, requestID string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	body, err := c.client.Get(ctx, viewKey(requestID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debug(ctx, "view_cache_get_failed", "Cache read failed, serving from database", map[string]any{
				"error": err.Error(),
			})
		}
		return nil, false
	}
	return body, true
}

// Set stores a serialized view with the configured TTL.
func (c *ViewCache) Set(ctx context.Context, requestID string, body []byte) {
	if c == nil {
		return
	}

	if err := c.client.Set(ctx, viewKey(requestID), body, c.ttl).Err(); err != nil {
		c.log.Debug(ctx, "view_cache_set_failed", "Cache write failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// Invalidate drops the cached view. Called after every committed mutation.
func (c *ViewCache) Invalidate(ctx context.Context, requestID string) {
	if c == nil {
		return
	}

	if err := c.client.Del(ctx, viewKey(requestID)).Err(); err != nil {
		c.log.Debug(ctx, "view_cache_invalidate_failed", "Cache invalidation failed", map[string]any{
			"error": err.Error(),
		})
	}
}
