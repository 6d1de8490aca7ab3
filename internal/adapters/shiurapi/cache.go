package shiurapi

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// memoryCache garde la dernière réponse réussie par clé. Les lectures
// tolèrent une entrée périmée quand le réseau vient d'échouer: mieux vaut
// des données fraîches d'il y a cinq minutes que rien.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{entries: map[string]cacheEntry{}, ttl: ttl}
}

func (c *memoryCache) put(key string, v any) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: v, storedAt: time.Now()}
	c.mu.Unlock()
}

// get renvoie (valeur, fresh, présent).
func (c *memoryCache) get(key string) (any, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	return e.value, time.Since(e.storedAt) < c.ttl, true
}
