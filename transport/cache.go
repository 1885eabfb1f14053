package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"itinera/logging"
	"itinera/metrics"
	"itinera/models"
)

const cacheKeyPrefix = "transport:duration:"

// CachedProvider memoizes durations in Redis. Redis errors never fail a
// lookup; they just bypass the cache.
type CachedProvider struct {
	inner  Provider
	rdb    redis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

func NewCachedProvider(inner Provider, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	return &CachedProvider{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		logger: logging.OrNop(logger),
	}
}

// CacheKey rounds coordinates to ~1m so nearby lookups share an entry.
func CacheKey(from, to models.Coordinates, mode string) string {
	return fmt.Sprintf("%s%s:%.5f,%.5f:%.5f,%.5f", cacheKeyPrefix, NormalizeMode(mode),
		from.Latitude, from.Longitude, to.Latitude, to.Longitude)
}

func (c *CachedProvider) Duration(ctx context.Context, from, to models.Coordinates, mode string) (int, error) {
	key := CacheKey(from, to, mode)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if secs, convErr := strconv.Atoi(val); convErr == nil {
			metrics.DurationCacheTotal.WithLabelValues("hit").Inc()
			return secs, nil
		}
		c.logger.Warn("discarding malformed cached duration", zap.String("key", key), zap.String("value", val))
	case errors.Is(err, redis.Nil):
	default:
		metrics.DurationCacheTotal.WithLabelValues("error").Inc()
		c.logger.Warn("duration cache read failed", zap.String("key", key), zap.Error(err))
	}
	metrics.DurationCacheTotal.WithLabelValues("miss").Inc()

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		secs, err := c.inner.Duration(ctx, from, to, mode)
		if err != nil {
			return 0, err
		}
		if setErr := c.rdb.Set(ctx, key, secs, c.ttl).Err(); setErr != nil {
			c.logger.Warn("duration cache write failed", zap.String("key", key), zap.Error(setErr))
		}
		return secs, nil
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}
