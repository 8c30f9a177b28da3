// Package cache provides an in-memory TTL cache for per-source search
// results, keyed by normalized query text and source id. A cache fault is
// never surfaced to callers; it behaves as a miss.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the default entry lifetime.
const DefaultTTL = 24 * time.Hour

// Config holds cache configuration.
type Config struct {
	Enabled bool
	TTL     time.Duration
}

// DefaultConfig returns an enabled cache with the default TTL.
func DefaultConfig() Config {
	return Config{Enabled: true, TTL: DefaultTTL}
}

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Cache is a process-wide store shared by all concurrent runs.
// When disabled, Get always misses and Set is a no-op; callers must not
// special-case the disabled mode.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	config  Config
	now     func() time.Time // injectable for tests
}

// New creates a cache with the given configuration.
func New(config Config) *Cache {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		config:  config,
		now:     time.Now,
	}
}

// Key derives the cache key from query text and source id. Query text is
// case-insensitive and whitespace-normalized so "Jane  Doe" and "jane doe"
// share an entry.
func Key(query, source string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized + ":" + strings.ToLower(source)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached payload for (query, source), or false on a miss.
// Expired entries are evicted lazily here.
func (c *Cache) Get(query, source string) ([]byte, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	key := Key(query, source)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have refreshed it.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.payload, true
}

// Set stores a payload for (query, source). A zero ttl uses the configured
// default.
func (c *Cache) Set(query, source string, payload []byte, ttl time.Duration) {
	if !c.config.Enabled {
		return
	}
	if ttl <= 0 {
		ttl = c.config.TTL
	}

	c.mu.Lock()
	c.entries[Key(query, source)] = entry{
		payload:   payload,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

// Sweep removes all expired entries and returns the count removed.
// Optional space reclamation; correctness does not depend on it.
func (c *Cache) Sweep() int {
	if !c.config.Enabled {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats summarizes the cache state.
type Stats struct {
	Enabled bool
	Entries int
	TTL     time.Duration
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Enabled: c.config.Enabled,
		Entries: len(c.entries),
		TTL:     c.config.TTL,
	}
}
