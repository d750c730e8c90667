package verification

import (
	"strings"
	"sync"

	"permitflow/internal/domain"
)

// Cache remembers records that verified successfully during one wizard session.
// Entries are never evicted; the cache is dropped with its session.
type Cache struct {
	mu      sync.RWMutex
	records map[string]map[string]any
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{records: make(map[string]map[string]any)}
}

func cacheKey(kind domain.VerifyKind, id string) string {
	return string(kind) + ":" + strings.TrimSpace(id)
}

// Get returns the cached record for a previously verified id.
func (c *Cache) Get(kind domain.VerifyKind, id string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[cacheKey(kind, id)]
	return rec, ok
}

// Put stores a verified record.
func (c *Cache) Put(kind domain.VerifyKind, id string, record map[string]any) {
	if record == nil {
		record = map[string]any{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[cacheKey(kind, id)] = record
}

// IsVerified implements validator.VerifiedIDs.
func (c *Cache) IsVerified(kind domain.VerifyKind, id string) bool {
	_, ok := c.Get(kind, id)
	return ok
}

// Len returns the number of verified ids.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
