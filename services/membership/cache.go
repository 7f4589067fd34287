package membership

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

// cacheEntry represents a single cached scope with TTL
type cacheEntry struct {
	userID     uuid.UUID
	scope      *Scope
	insertedAt time.Time
	element    *list.Element // For LRU tracking
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// ScopeCache is an in-memory LRU cache with TTL for resolved membership
// scopes. Thread-safe implementation using sync.Mutex. Entries are keyed
// by user ID and invalidated synchronously on every pairing write, so a
// cached scope is never stale with respect to this process.
type ScopeCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*cacheEntry
	lruList *list.List    // Doubly linked list for LRU tracking
	maxSize int           // Maximum number of entries
	ttl     time.Duration // Time-to-live for entries
	hits    uint64
	misses  uint64
}

// NewScopeCache creates a new ScopeCache with specified max size and TTL
func NewScopeCache(maxSize int, ttl time.Duration) *ScopeCache {
	return &ScopeCache{
		entries: make(map[uuid.UUID]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached scope for a user.
// Returns nil if not found or expired.
func (c *ScopeCache) Get(userID uuid.UUID) *Scope {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[userID]
	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(userID)
		}
		return nil
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.scope
}

// Set stores a resolved scope in the cache
func (c *ScopeCache) Set(userID uuid.UUID, scope *Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[userID]; exists {
		entry.scope = scope
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		userID:     userID,
		scope:      scope,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(userID)
	c.entries[userID] = entry
}

// Invalidate removes the cached scope for a user
func (c *ScopeCache) Invalidate(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(userID)
}

// InvalidatePairing removes the cached scopes of both pairing members.
// Must be called on every pairing create and deactivate.
func (c *ScopeCache) InvalidatePairing(userAID, userBID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(userAID)
	c.removeEntry(userBID)
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Stats returns cache statistics
func (c *ScopeCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *ScopeCache) removeEntry(userID uuid.UUID) {
	if entry, exists := c.entries[userID]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, userID)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (c *ScopeCache) evictLRU() {
	backElement := c.lruList.Back()
	if backElement != nil {
		userID := backElement.Value.(uuid.UUID)
		c.lruList.Remove(backElement)
		delete(c.entries, userID)
	}
}

// CleanupExpired removes all expired entries
func (c *ScopeCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := make([]uuid.UUID, 0)
	for userID, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			expired = append(expired, userID)
		}
	}
	for _, userID := range expired {
		c.removeEntry(userID)
	}

	return len(expired)
}

// StartCleanupWorker starts a background worker to periodically clean up expired entries
func (c *ScopeCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
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
