package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "payledger"

// NewRedisClient creates a client and verifies the server is reachable.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}
	return client, nil
}

// RedisCache stores view projections under a per-tenant version. Invalidation
// bumps the version so stale keys age out through their TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func versionKey(tenantID string) string {
	return strings.Join([]string{keyPrefix, tenantID, "version"}, ":")
}

func (c *RedisCache) version(ctx context.Context, tenantID string) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey(tenantID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(tenantID)).Int64()
	}
	return ver, err
}

func (c *RedisCache) buildKey(ctx context.Context, tenantID, key string) (string, error) {
	ver, err := c.version(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{keyPrefix, tenantID, strconv.FormatInt(ver, 10), key}, ":"), nil
}

func (c *RedisCache) Get(ctx context.Context, tenantID, key string, dest any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	full, err := c.buildKey(ctx, tenantID, key)
	if err != nil {
		return false, err
	}
	payload, err := c.client.Get(ctx, full).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode cached view: %w", err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, tenantID, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	full, err := c.buildKey(ctx, tenantID, key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, full, raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, tenantID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(tenantID)).Err()
}
