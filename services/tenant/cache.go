package tenant

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vectorgate/vectorgate/models"
)

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	key        string // credential hash
	tenant     *models.TenantContext
	insertedAt time.Time
	element    *list.Element // For LRU tracking
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// Cache is an in-memory LRU cache with TTL for resolved tenant contexts,
// keyed by the stable hash of the presenting credential.
// Thread-safe implementation using sync.RWMutex
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	lruList *list.List // Doubly linked list for LRU tracking
	maxSize int        // Maximum number of entries
	ttl     time.Duration
	hits    uint64
	misses  uint64
}

// NewCache creates a new Cache with specified max size and TTL
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a resolved tenant from cache.
// Returns nil if not found or expired.
func (c *Cache) Get(credentialHash string) *models.TenantContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[credentialHash]
	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			// Remove expired entry
			c.removeEntry(credentialHash)
		}
		return nil
	}

	// Move to front (most recently used)
	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.tenant
}

// Set stores a resolved tenant in cache
func (c *Cache) Set(credentialHash string, tenant *models.TenantContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[credentialHash]; exists {
		// Update existing entry. A resolution race lands here: both racers
		// wrote a fully-built TenantContext, so last write wins cleanly.
		entry.tenant = tenant
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	// Evict least recently used entry if cache is full
	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		key:        credentialHash,
		tenant:     tenant,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(credentialHash)
	c.entries[credentialHash] = entry
}

// Invalidate removes a specific cache entry
func (c *Cache) Invalidate(credentialHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(credentialHash)
}

// InvalidateTenant removes all cache entries resolving to a tenant.
// Used on revocation so cached credentials stop working immediately.
func (c *Cache) InvalidateTenant(tenantID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.tenant != nil && entry.tenant.TenantID == tenantID {
			c.removeEntry(key)
		}
	}
}

// Clear removes all entries from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *Cache) removeEntry(key string) {
	if entry, exists := c.entries[key]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, key)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (c *Cache) evictLRU() {
	if c.lruList.Len() == 0 {
		return
	}

	backElement := c.lruList.Back()
	if backElement != nil {
		key := backElement.Value.(string)
		c.lruList.Remove(backElement)
		delete(c.entries, key)
	}
}

// CleanupExpired removes all expired entries.
// Should be called periodically in a background goroutine.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiredKeys := make([]string, 0)
	for key, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			expiredKeys = append(expiredKeys, key)
		}
	}
	for _, key := range expiredKeys {
		c.removeEntry(key)
	}

	return len(expiredKeys)
}

// StartCleanupWorker starts a background worker to periodically clean up expired entries
func (c *Cache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}
