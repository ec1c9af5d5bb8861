package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is the staleness tolerance for cached resolutions.
// Category renames are rare; a few minutes of lag is acceptable.
const DefaultCacheTTL = 5 * time.Minute

// cacheKeyPrefix namespaces resolution entries in Redis.
const cacheKeyPrefix = "catalog:name:"

// CachedResolver wraps a Resolver with a Redis read-through cache. Cache
// values are CBOR-encoded for compactness. Redis failures are never
// surfaced: the resolver falls through to the inner Resolver so that a
// cache outage cannot break search.
type CachedResolver struct {
	inner  Resolver
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedResolver creates a CachedResolver. A non-positive ttl selects
// DefaultCacheTTL.
func NewCachedResolver(inner Resolver, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedResolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedResolver{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// ResolveName answers from cache when possible, otherwise resolves through
// the inner Resolver and stores the hit. Misses (ErrNotFound) are not
// cached: the common miss is a user typo, and caching it would delay
// newly created categories from becoming resolvable.
func (c *CachedResolver) ResolveName(ctx context.Context, name string) (*Category, error) {
	key := cacheKeyPrefix + strings.ToLower(strings.TrimSpace(name))

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached Category
		if decErr := cbor.Unmarshal(data, &cached); decErr == nil {
			return &cached, nil
		}
		// Undecodable entry: drop it and resolve fresh.
		c.logger.WarnContext(ctx, "dropping corrupt catalog cache entry", "key", key)
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.DebugContext(ctx, "catalog cache read failed", "error", err)
	}

	resolved, err := c.inner.ResolveName(ctx, name)
	if err != nil {
		return nil, err
	}

	encoded, encErr := cbor.Marshal(resolved)
	if encErr != nil {
		c.logger.WarnContext(ctx, "failed to encode category for cache", "error", encErr)
		return resolved, nil
	}
	if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
		c.logger.DebugContext(ctx, "catalog cache write failed", "error", setErr)
	}
	return resolved, nil
}
