// Package cache provides the optional Redis-backed shared query cache. It
// sits in front of the engine's in-process LRU so several server replicas
// can share computed results. Keys embed the engine generation: after any
// index mutation new searches hash to fresh keys and stale entries simply
// age out through their TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/organizerlabs/smart-search-organizer/internal/engine"
	"github.com/organizerlabs/smart-search-organizer/internal/engine/tokenizer"
	"github.com/organizerlabs/smart-search-organizer/pkg/config"
	pkgredis "github.com/organizerlabs/smart-search-organizer/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "sso:search:"

// QueryCache caches serialized search results in Redis. Concurrent misses on
// the same key are collapsed into a single engine computation.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a QueryCache on an established Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for the query at the given engine generation.
// Any Redis failure is treated as a miss.
func (c *QueryCache) Get(ctx context.Context, generation uint64, query, mode string, topK int) (*engine.SearchResult, bool) {
	key := c.buildKey(generation, query, mode, topK)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result engine.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &result, true
}

// Set stores a result with the configured TTL. Failures are logged and
// swallowed; the cache is an optimisation, not a dependency.
func (c *QueryCache) Set(ctx context.Context, generation uint64, query, mode string, topK int, result *engine.SearchResult) {
	key := c.buildKey(generation, query, mode, topK)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs computeFn, storing its
// output. The boolean reports whether the result came from the cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	generation uint64,
	query, mode string,
	topK int,
	computeFn func() (*engine.SearchResult, error),
) (*engine.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, generation, query, mode, topK); ok {
		return result, true, nil
	}
	key := c.buildKey(generation, query, mode, topK)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, generation, query, mode, topK); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, generation, query, mode, topK, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*engine.SearchResult), false, nil
}

// Invalidate eagerly deletes every cached search result. Generation-scoped
// keys already prevent stale serving; this just reclaims memory early.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the generation, the sorted distinct query tokens, the mode,
// and the result size. Token-order variants of the same query share a key.
func (c *QueryCache) buildKey(generation uint64, query, mode string, topK int) string {
	tokens := tokenizer.Distinct(query)
	sort.Strings(tokens)
	raw := fmt.Sprintf("gen=%d|%s|%s|topk=%d", generation, strings.Join(tokens, ","), mode, topK)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
