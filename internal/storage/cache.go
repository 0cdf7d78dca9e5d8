package storage

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// readCache is a bounded TTL cache for the read-only recommendation path.
// The mutation path never reads from it; every write removes the keys it touched.
//
// Every removal bumps a generation counter. A reader takes the generation
// before querying and fills the cache with putIf, which drops the value
// when a write was invalidated in between, so a value read before a commit
// is never cached after that commit's invalidation.
type readCache struct {
	lru *expirable.LRU[string, any]

	mu  sync.Mutex
	gen uint64
}

func newReadCache(size int, ttl time.Duration) *readCache {
	if ttl <= 0 || size <= 0 {
		return &readCache{}
	}
	return &readCache{lru: expirable.NewLRU[string, any](size, nil, ttl)}
}

func (c *readCache) get(key string) (any, bool) {
	if c.lru == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

// generation returns the current invalidation generation.
func (c *readCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// putIf caches v unless an invalidation happened since gen was taken.
func (c *readCache) putIf(key string, v any, gen uint64) bool {
	if c.lru == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.lru.Add(key, v)
	return true
}

func (c *readCache) remove(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.lru == nil {
		return
	}
	for _, k := range keys {
		c.lru.Remove(k)
	}
}

func (c *readCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.lru == nil {
		return
	}
	c.lru.Purge()
}

func patternCacheKey(key PatternKey) string {
	return "pattern\x00" + key.Category + "\x00" + key.Fingerprint
}

func categoryCacheKey(category string) string {
	return "category\x00" + category
}

func preferenceCacheKey(key PreferenceKey) string {
	return strings.Join([]string{"preference", key.UserID, key.ProjectFingerprint, key.Dimension}, "\x00")
}
