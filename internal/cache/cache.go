// Package cache provides a Redis-backed cache for trending and topic-posts
// queries. Concurrent misses for the same key are collapsed with
// singleflight, and all Redis round-trips run behind a circuit breaker so a
// sick cache backend degrades to direct engine reads instead of failing
// queries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/microtrend-io/microtrend/internal/engine"
	"github.com/microtrend-io/microtrend/pkg/config"
	"github.com/microtrend-io/microtrend/pkg/logger"
	pkgredis "github.com/microtrend-io/microtrend/pkg/redis"
	"github.com/microtrend-io/microtrend/pkg/resilience"
)

const keyPrefix = "query:"

// QueryCache caches serialized query results in Redis.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache on top of an established Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		breaker: resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     15 * time.Second,
		}),
		logger: logger.WithComponent("query-cache"),
	}
}

// GetOrComputeTrending returns the cached trending result for the range and
// limit, or computes, caches, and returns it. The bool reports a cache hit.
func (c *QueryCache) GetOrComputeTrending(
	ctx context.Context,
	from, to uint64,
	limit int,
	computeFn func() ([]engine.TopicCount, error),
) ([]engine.TopicCount, bool, error) {
	key := c.buildKey(fmt.Sprintf("trending:%d:%d:limit=%d", from, to, limit))
	var result []engine.TopicCount
	hit, err := c.getOrCompute(ctx, key, &result, func() (any, error) {
		return computeFn()
	})
	return result, hit, err
}

// GetOrComputeTopicPosts returns the cached posts for a topic, or computes,
// caches, and returns them. The bool reports a cache hit.
func (c *QueryCache) GetOrComputeTopicPosts(
	ctx context.Context,
	topic string,
	computeFn func() ([]string, error),
) ([]string, bool, error) {
	key := c.buildKey("topic:" + topic)
	var result []string
	hit, err := c.getOrCompute(ctx, key, &result, func() (any, error) {
		return computeFn()
	})
	return result, hit, err
}

// getOrCompute implements the lookup-compute-store cycle. dst receives the
// result either from the cached JSON or from computeFn's return value.
func (c *QueryCache) getOrCompute(
	ctx context.Context,
	key string,
	dst any,
	computeFn func() (any, error),
) (bool, error) {
	if data, ok := c.lookup(ctx, key); ok {
		if err := json.Unmarshal([]byte(data), dst); err == nil {
			c.hits.Add(1)
			return true, nil
		}
		c.logger.Error("cache unmarshal failed, recomputing", "key", key)
	}
	c.misses.Add(1)

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return false, err
	}
	// Round-trip through JSON so dst is filled the same way on hit and miss.
	data, err := json.Marshal(val)
	if err != nil {
		return false, fmt.Errorf("marshaling computed result: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("unmarshaling computed result: %w", err)
	}
	return false, nil
}

// lookup fetches a key through the circuit breaker. A nil Redis reply, a
// backend error, or an open circuit all read as a miss.
func (c *QueryCache) lookup(ctx context.Context, key string) (string, bool) {
	var data string
	var found bool
	err := c.breaker.Execute(func() error {
		val, err := c.client.Get(ctx, key)
		if err != nil {
			if pkgredis.IsNilError(err) {
				return nil
			}
			return err
		}
		data = val
		found = true
		return nil
	})
	if err != nil {
		if err != resilience.ErrCircuitOpen {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return data, found
}

// store writes a computed result through the circuit breaker; failures are
// logged, never surfaced.
func (c *QueryCache) store(ctx context.Context, key string, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil && err != resilience.ErrCircuitOpen {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached query result. Called after each mutation so
// readers never see pre-mutation state beyond the TTL.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Debug("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
