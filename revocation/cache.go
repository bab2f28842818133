package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garagehub/gomicro/config"
	"github.com/garagehub/gomicro/logger"
)

// cacheTTL bounds how long a revoked jti stays cached. Entries only need to
// outlive the longest token validity window; after that the token is dead by
// expiry anyway.
const cacheTTL = 31 * 24 * time.Hour

// Cache is a Redis fast-path for revoked-jti lookups. It never answers "not
// revoked" on its own: a miss or a Redis error falls through to the
// database, so a cache outage degrades latency, not correctness.
type Cache struct {
	client *redis.Client
}

// NewCache builds a cache from configuration. Returns nil when no Redis
// address is configured, which disables the fast-path entirely.
func NewCache(cfg *config.RedisConfig) *Cache {
	if cfg == nil || cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{client: client}
}

func cacheKey(jti string) string {
	return fmt.Sprintf("revoked_jti:%s", jti)
}

// IsRevoked returns (revoked, answered). answered is false on miss or error.
func (c *Cache) IsRevoked(ctx context.Context, jti string) (bool, bool) {
	if c == nil || c.client == nil {
		return false, false
	}
	val, err := c.client.Exists(ctx, cacheKey(jti)).Result()
	if err != nil {
		logger.FromContext(ctx).Debug("revocation cache lookup failed", zap.Error(err))
		return false, false
	}
	return val > 0, val > 0
}

// MarkRevoked records a revoked jti. Failures are logged and ignored: the
// database already holds the authoritative record.
func (c *Cache) MarkRevoked(ctx context.Context, jti string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(jti), "1", cacheTTL).Err(); err != nil {
		logger.FromContext(ctx).Warn("revocation cache write failed", zap.Error(err))
	}
}
