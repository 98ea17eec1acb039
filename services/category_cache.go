package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const catalogVersionKey = "catalog:version"

// CategoryCache keeps rendered catalog reads in Redis under versioned keys.
// Any catalog write bumps the version, so stale entries are never read again and expire by TTL.
// A nil cache or one without a client passes every read through to the loader.
type CategoryCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

var categoryCacheInstance *CategoryCache

// NewCategoryCache creates the cache helper
func NewCategoryCache(client *redis.Client, ttl time.Duration) *CategoryCache {
	return &CategoryCache{client: client, ttl: ttl}
}

// InitCategoryCache connects to Redis at addr and installs the shared cache instance.
// An empty addr installs a pass-through cache.
func InitCategoryCache(ctx context.Context, addr string, ttl time.Duration) (*CategoryCache, error) {
	if addr == "" {
		categoryCacheInstance = NewCategoryCache(nil, ttl)
		return categoryCacheInstance, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	categoryCacheInstance = NewCategoryCache(client, ttl)
	return categoryCacheInstance, nil
}

// GetCategoryCache returns the shared cache instance (may be nil)
func GetCategoryCache() *CategoryCache {
	return categoryCacheInstance
}

// SetCategoryCache sets the shared cache instance (primarily for testing)
func SetCategoryCache(cache *CategoryCache) {
	categoryCacheInstance = cache
}

func (c *CategoryCache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current catalog version, initialising it when missing
func (c *CategoryCache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, catalogVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, catalogVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, catalogVersionKey).Int64()
	}
	return ver, err
}

// BuildKey composes a cache key tagged with the current version
func (c *CategoryCache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"catalog"}, parts...), ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON decodes the cached value at key into dest, populating it with loader on a miss.
// Concurrent misses for the same key share one loader call.
// Redis failures degrade to calling the loader directly.
func (c *CategoryCache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if !c.enabled() {
		return loadInto(ctx, dest, loader)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("catalog cache read failed", "key", key, "error", err)
		return loadInto(ctx, dest, loader)
	}

	// the shared load outlives any one caller; each caller still stops waiting when its ctx ends
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		value, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(loadCtx, key, raw, c.ttl).Err(); err != nil {
			slog.Warn("catalog cache write failed", "key", key, "error", err)
		}
		return raw, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}

// Bump invalidates every cached catalog entry
func (c *CategoryCache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, catalogVersionKey).Err()
}

func loadInto(ctx context.Context, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
