// Package cache provides a Redis-backed read cache for derived compliance
// status. Status derivation is cheap but sits on the admin console hot path;
// a short TTL keeps it fresh while absorbing dashboard refresh storms.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"custodia/internal/policy"
)

const keyPrefix = "custodia:compliance:status:"

// StatusCache is a cache-aside wrapper around a Redis client. A nil
// *StatusCache is a no-op, so callers never branch on whether Redis is
// configured.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a status cache with the given TTL.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *StatusCache {
	return &StatusCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached status for clientID, if present. Cache errors are
// logged and treated as misses: Redis being down must never fail a read.
func (c *StatusCache) Get(ctx context.Context, clientID string) (policy.ComplianceStatus, bool) {
	if c == nil || c.client == nil {
		return policy.ComplianceStatus{}, false
	}
	raw, err := c.client.Get(ctx, keyPrefix+clientID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "status cache read failed", "client_id", clientID, "error", err)
		}
		return policy.ComplianceStatus{}, false
	}
	var status policy.ComplianceStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		c.logger.WarnContext(ctx, "status cache entry corrupt", "client_id", clientID, "error", err)
		return policy.ComplianceStatus{}, false
	}
	return status, true
}

// Set stores the status for clientID with the configured TTL.
func (c *StatusCache) Set(ctx context.Context, clientID string, status policy.ComplianceStatus) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+clientID, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "status cache write failed", "client_id", clientID, "error", err)
	}
}

// Invalidate drops the cached status for clientID after a mutation.
func (c *StatusCache) Invalidate(ctx context.Context, clientID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+clientID).Err(); err != nil {
		c.logger.WarnContext(ctx, "status cache invalidation failed", "client_id", clientID, "error", err)
	}
}
