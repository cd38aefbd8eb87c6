package scattering

import (
	"strconv"
	"sync"

	"github.com/couchcryptid/disdro-dsd-service/internal/radar"
)

// CachedProvider wraps a ScatteringProvider with an in-memory LRU cache.
// Useful in front of providers whose lookups are expensive (interpolating
// large grids, or bridging to an out-of-process T-matrix service); repeated
// queries for the same bin centers hit the cache.
type CachedProvider struct {
	inner radar.ScatteringProvider
	cache *lruCache
}

// NewCachedProvider creates a cache decorator around a provider.
func NewCachedProvider(inner radar.ScatteringProvider, maxEntries int) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedProvider) WavelengthMM() float64 { return c.inner.WavelengthMM() }
func (c *CachedProvider) TemperatureC() float64 { return c.inner.TemperatureC() }

func (c *CachedProvider) Amplitudes(diameterMM float64) (radar.Amplitudes, error) {
	key := strconv.FormatFloat(diameterMM, 'f', 6, 64)
	if a, ok := c.cache.get(key); ok {
		return a, nil
	}
	a, err := c.inner.Amplitudes(diameterMM)
	if err != nil {
		// Out-of-domain failures are not cached; the provider's domain may
		// be swapped for a wider table under the same decorator.
		return a, err
	}
	c.cache.put(key, a)
	return a, nil
}

// lruCache is a simple thread-safe LRU cache for amplitude lookups.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value radar.Amplitudes
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (radar.Amplitudes, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return radar.Amplitudes{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value radar.Amplitudes) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	if len(c.entries) > c.maxEntries {
		c.evict()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *lruCache) pushFront(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if c.head == e {
		c.head = e.next
	}
	if c.tail == e {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *lruCache) evict() {
	lru := c.tail
	if lru == nil {
		return
	}
	c.unlink(lru)
	delete(c.entries, lru.key)
}
