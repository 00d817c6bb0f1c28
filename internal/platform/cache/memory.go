package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process view cache used when no Redis is configured.
// Entries are stored JSON-encoded so callers never share slices.
type MemoryCache struct {
	items *gocache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(ttl, 2*ttl)}
}

func memoryKey(tenantID, key string) string {
	return tenantID + "\x00" + key
}

func (c *MemoryCache) Get(_ context.Context, tenantID, key string, dest any) (bool, error) {
	raw, ok := c.items.Get(memoryKey(tenantID, key))
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw.([]byte), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, tenantID, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items.SetDefault(memoryKey(tenantID, key), raw)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, tenantID string) error {
	prefix := tenantID + "\x00"
	for k := range c.items.Items() {
		if strings.HasPrefix(k, prefix) {
			c.items.Delete(k)
		}
	}
	return nil
}
