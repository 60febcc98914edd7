//go:build integration

package cache_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/compliance/cache"
	"custodia/internal/policy"
	"custodia/pkg/testutil/containers"
)

const cacheTTL = 5 * time.Minute

type StatusCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.StatusCache
}

func TestStatusCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StatusCacheSuite))
}

func (s *StatusCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.cache = cache.New(s.redis.Client, cacheTTL, logger)
}

func (s *StatusCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *StatusCacheSuite) newStatus() policy.ComplianceStatus {
	return policy.ComplianceStatus{
		IsCompliant:            false,
		Issues:                 []string{policy.IssueLowScore},
		Score:                  72,
		NextAudit:              time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		DPAExpiration:          time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		DaysUntilNextAudit:     93,
		DaysUntilDPAExpiration: 229,
	}
}

func (s *StatusCacheSuite) TestHitAfterSet() {
	ctx := context.Background()
	status := s.newStatus()

	s.cache.Set(ctx, "client-1", status)

	got, ok := s.cache.Get(ctx, "client-1")
	s.Require().True(ok)
	s.Equal(status, got)

	ttl := s.entryTTL(ctx)
	s.Positive(ttl)
	s.LessOrEqual(ttl, cacheTTL)
}

func (s *StatusCacheSuite) TestMissForUnknownClient() {
	_, ok := s.cache.Get(context.Background(), "client-absent")
	s.False(ok)
}

func (s *StatusCacheSuite) TestMissAfterInvalidate() {
	ctx := context.Background()
	s.cache.Set(ctx, "client-1", s.newStatus())
	s.cache.Set(ctx, "client-2", s.newStatus())

	s.cache.Invalidate(ctx, "client-1")

	_, ok := s.cache.Get(ctx, "client-1")
	s.False(ok)

	_, ok = s.cache.Get(ctx, "client-2")
	s.True(ok, "invalidation is scoped to one client")
}

func (s *StatusCacheSuite) TestCorruptEntryIsAMiss() {
	ctx := context.Background()
	s.cache.Set(ctx, "client-1", s.newStatus())

	key := s.onlyKey(ctx)
	s.Require().NoError(s.redis.Client.Set(ctx, key, "{not json", cacheTTL).Err())

	_, ok := s.cache.Get(ctx, "client-1")
	s.False(ok)
}

// onlyKey returns the single key present in Redis, so tests can manipulate
// stored entries without depending on the cache's key layout.
func (s *StatusCacheSuite) onlyKey(ctx context.Context) string {
	keys, err := s.redis.Client.Keys(ctx, "*").Result()
	s.Require().NoError(err)
	s.Require().Len(keys, 1)
	return keys[0]
}

func (s *StatusCacheSuite) entryTTL(ctx context.Context) time.Duration {
	ttl, err := s.redis.Client.TTL(ctx, s.onlyKey(ctx)).Result()
	s.Require().NoError(err)
	return ttl
}
