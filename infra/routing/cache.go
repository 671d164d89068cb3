package routing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	coreroute "github.com/tyneline/dispatch/core/routing"
	"github.com/tyneline/dispatch/infra/logger"
)

// CachedProvider wraps a Provider with a Redis cache. Distances between a
// given address pair change rarely, so hits skip the routing service
// entirely. Cache failures fall through to the inner provider.
type CachedProvider struct {
	inner coreroute.Provider
	rdb   *redis.Client
	ttl   time.Duration
	log   logger.Logger
}

// NewCachedProvider connects to Redis and wraps inner. The connection is
// verified with a ping so a bad cache URL surfaces at startup.
func NewCachedProvider(inner coreroute.Provider, cacheURL string, ttl time.Duration) (*CachedProvider, error) {
	opt, err := redis.ParseURL(cacheURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &CachedProvider{inner: inner, rdb: rdb, ttl: ttl, log: logger.New("routing-cache")}, nil
}

func cacheKey(pickup, dropoff string) string {
	return "route:" + pickup + "|" + dropoff
}

// Route implements routing.Provider.
func (c *CachedProvider) Route(ctx context.Context, pickup, dropoff string) (coreroute.Estimate, error) {
	key := cacheKey(pickup, dropoff)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var est coreroute.Estimate
		if err := json.Unmarshal(raw, &est); err == nil {
			return est, nil
		}
	} else if err != redis.Nil {
		c.log.Warnf("cache read %s: %v", key, err)
	}

	est, err := c.inner.Route(ctx, pickup, dropoff)
	if err != nil {
		return est, err
	}
	if raw, merr := json.Marshal(est); merr == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warnf("cache write %s: %v", key, err)
		}
	}
	return est, nil
}

// Close releases the Redis connection.
func (c *CachedProvider) Close() error {
	return c.rdb.Close()
}
