package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"epschart/logger"
)

// Cache memoizes function results in Redis. A nil *Cache, or one without a
// client, simply calls through.
type Cache struct {
	client *redis.Client
	prefix string
}

// New returns a Cache backed by the redis server at addr. An empty addr
// disables caching.
func New(addr, password string, db int) *Cache {
	if addr == "" {
		return &Cache{}
	}
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client, prefix: "epschart:"}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Ping reports whether redis is reachable. A disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.client.Close()
}

// Memoize returns the cached value for key, or calls fn and stores its result
// for ttl. Errors from fn are returned and never cached. Redis failures only
// cost the cache hit.
func Memoize[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	if !c.enabled() || ttl <= 0 {
		return fn()
	}
	var result T
	key = c.prefix + key

	cachedData, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(cachedData, &result); jsonErr == nil {
			logger.Debugf("cache hit %s", key)
			return result, nil
		}
	} else if err != redis.Nil {
		logger.Warnf("cache read %s failed: %v", key, err)
	}

	result, err = fn()
	if err != nil {
		return result, err
	}

	cacheData, err := json.Marshal(result)
	if err != nil {
		logger.Warnf("cache encode %s failed: %v", key, err)
		return result, nil
	}
	if err := c.client.Set(ctx, key, cacheData, ttl).Err(); err != nil {
		logger.Warnf("cache write %s failed: %v", key, err)
	}
	return result, nil
}
