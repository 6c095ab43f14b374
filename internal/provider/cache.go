package provider

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// cacheTTL bounds how long continue-watching and watchlist membership are
// trusted before a refresh.
const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	keys    map[string]struct{}
	expires time.Time
}

// keyCache is a read-through cache of string-key sets. A stale or absent
// entry triggers exactly one refresh per cache key at a time; concurrent
// readers share the in-flight result. A refresh failure is treated as an
// empty set so a flaky remote query degrades lookups instead of failing
// them.
type keyCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newKeyCache(ttl time.Duration) *keyCache {
	return &keyCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// contains reports whether member is in the key set cached under key,
// refreshing from the backing source first when the entry is stale or
// absent.
func (c *keyCache) contains(key, member string, refresh func() (map[string]struct{}, error)) bool {
	c.mu.Lock()
	entry, ok := c.entries[key]
	fresh := ok && c.now().Before(entry.expires)
	c.mu.Unlock()

	if !fresh {
		v, _, _ := c.group.Do(key, func() (any, error) {
			keys, err := refresh()
			if err != nil || keys == nil {
				keys = map[string]struct{}{}
			}
			e := cacheEntry{keys: keys, expires: c.now().Add(c.ttl)}
			c.mu.Lock()
			c.entries[key] = e
			c.mu.Unlock()
			return e, nil
		})
		entry = v.(cacheEntry)
	}

	_, ok = entry.keys[member]
	return ok
}

func (c *keyCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// orderingCache holds resolved section-level ordering preferences. Entries
// persist until an explicit clear: the setting rarely changes and is cheap
// to invalidate.
type orderingCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newOrderingCache() *orderingCache {
	return &orderingCache{entries: make(map[string]string)}
}

func (c *orderingCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *orderingCache) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *orderingCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
}
