package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "authz:perms:"

// Cache stores resolved permission sets in Redis. Cache trouble is
// never fatal: a failed read counts as a miss and a failed write is
// only logged, so evaluation always falls back to the database.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(principalID uuid.UUID) string {
	return cacheKeyPrefix + principalID.String()
}

// Get returns the cached set for the principal, if present.
func (c *Cache) Get(ctx context.Context, principalID uuid.UUID) (PermissionSet, bool) {
	if c == nil || c.client == nil {
		return PermissionSet{}, false
	}
	payload, err := c.client.Get(ctx, cacheKey(principalID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.Error("authz cache get", slog.Any("error", err))
		}
		return PermissionSet{}, false
	}
	var set PermissionSet
	if err := json.Unmarshal(payload, &set); err != nil {
		if c.logger != nil {
			c.logger.Error("authz cache decode", slog.Any("error", err))
		}
		return PermissionSet{}, false
	}
	return set, true
}

// Set stores the resolved set with the configured TTL.
func (c *Cache) Set(ctx context.Context, principalID uuid.UUID, set PermissionSet) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(principalID), payload, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Error("authz cache set", slog.Any("error", err))
	}
}

// InvalidatePrincipal drops the cached set for one principal.
func (c *Cache) InvalidatePrincipal(ctx context.Context, principalID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(principalID)).Err(); err != nil && c.logger != nil {
		c.logger.Error("authz cache invalidate", slog.Any("error", err))
	}
}

// InvalidateAll drops every cached set. Role hard deletes use it:
// they remove inactive assignments too, so per-principal invalidation
// would miss holders anyway.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("authz: invalidate all: %w", err)
		}
	}
	return iter.Err()
}
