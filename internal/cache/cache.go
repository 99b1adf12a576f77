// internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"token-verification-service/internal/common/logger"
	"token-verification-service/internal/common/metrics"
	"token-verification-service/internal/oracle"
)

// DefaultTTL bounds verification staleness to five minutes. On-chain
// ownership changes are rare and detecting them eagerly is expensive, so a
// short fixed TTL replaces event subscriptions.
const DefaultTTL = 300 * time.Second

// Cache stores verification results in Redis under a fixed TTL. When the
// store is unreachable at startup the cache runs in pass-through mode: every
// Get misses and Put/Invalidate are no-ops, which affects load, not
// correctness.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
	logger  logger.Logger
}

// New probes the Redis connection and returns a cache, degraded to
// pass-through mode if the probe fails.
func New(ctx context.Context, client *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "verification-cache"}),
	}

	if client == nil {
		c.logger.Warn("no redis client configured, caching disabled", nil)
		return c
	}

	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn("redis not available, caching disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return c
	}

	c.enabled = true
	c.logger.Info("verification cache enabled", map[string]interface{}{
		"ttl": ttl.String(),
	})
	return c
}

// Enabled reports whether the cache is backed by a reachable store. Exposed
// through the health endpoint.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// TTL returns the fixed expiry window applied to entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a cached, non-expired result. A miss is not an error, and
// runtime store failures degrade to a miss.
func (c *Cache) Get(ctx context.Context, key oracle.Key) (*oracle.Result, bool) {
	if !c.enabled {
		return nil, false
	}

	data, err := c.client.Get(ctx, key.CacheKey()).Result()
	if err != nil {
		if err != redis.Nil {
			metrics.CacheLookups.WithLabelValues("error").Inc()
			c.logger.Error("cache read failed", map[string]interface{}{
				"key":   key.CacheKey(),
				"error": err.Error(),
			})
		} else {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
		return nil, false
	}

	var result oracle.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Error("cache entry corrupt, discarding", map[string]interface{}{
			"key":   key.CacheKey(),
			"error": err.Error(),
		})
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &result, true
}

// Put stores a result under the fixed TTL, overwriting any prior entry for
// the key. Store failures are logged and absorbed.
func (c *Cache) Put(ctx context.Context, key oracle.Key, result oracle.Result) {
	if !c.enabled {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("marshalling verification result", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if err := c.client.Set(ctx, key.CacheKey(), data, c.ttl).Err(); err != nil {
		c.logger.Error("cache write failed", map[string]interface{}{
			"key":   key.CacheKey(),
			"error": err.Error(),
		})
	}
}

// Invalidate removes the entry for a key. Administrative; used after a known
// on-chain transfer since no event subscription exists to do it automatically.
func (c *Cache) Invalidate(ctx context.Context, key oracle.Key) {
	if !c.enabled {
		return
	}

	if err := c.client.Del(ctx, key.CacheKey()).Err(); err != nil {
		c.logger.Error("cache invalidation failed", map[string]interface{}{
			"key":   key.CacheKey(),
			"error": err.Error(),
		})
	}
}
