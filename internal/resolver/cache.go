package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"reelpress/internal/pkg/logger"
)

const cacheKeyPrefix = "resolver:url:"

type cachedResolver struct {
	inner Resolver
	rdb   *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

// WithCache memoizes resolved URLs in redis. Cache failures degrade to a
// direct resolution; they never fail the job.
func WithCache(inner Resolver, rdb *redis.Client, ttl time.Duration, log *logger.Logger) Resolver {
	if rdb == nil {
		return inner
	}
	return &cachedResolver{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.WithComponent("resolver-cache"),
	}
}

func (c *cachedResolver) Resolve(ctx context.Context, sourceRef string) (string, error) {
	key := cacheKeyPrefix + sourceRef

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil && cached != "" {
		c.log.Debug("cache hit", "source_ref", sourceRef)
		return cached, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn("cache read failed", "source_ref", sourceRef, "error", err)
	}

	url, err := c.inner.Resolve(ctx, sourceRef)
	if err != nil {
		return "", err
	}

	if setErr := c.rdb.Set(ctx, key, url, c.ttl).Err(); setErr != nil {
		c.log.Warn("cache write failed", "source_ref", sourceRef, "error", setErr)
	}
	return url, nil
}
