package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is the fast tier: a bounded LRU with per-entry TTL. Expired
// entries are dropped lazily on read and in bulk by ClearExpired.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	ll         *list.List
	items      map[string]*list.Element
}

type lruItem struct {
	key   string
	entry Entry
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Get returns the live entry for key, counting the hit and refreshing its
// LRU position. An expired entry is evicted and reported as a miss.
func (c *MemoryCache) Get(key string, now time.Time) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}

	item := el.Value.(*lruItem)
	if item.entry.Expired(now) {
		c.removeElement(el)
		return Entry{}, false
	}

	item.entry.HitCount++
	c.ll.MoveToFront(el)
	return item.entry, true
}

// Peek returns the entry without counting a hit or touching LRU order.
func (c *MemoryCache) Peek(key string, now time.Time) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok || el.Value.(*lruItem).entry.Expired(now) {
		return Entry{}, false
	}
	return el.Value.(*lruItem).entry, true
}

// Put stores the entry, evicting the least recently used entry when full.
func (c *MemoryCache) Put(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem).entry = entry
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&lruItem{key: key, entry: entry})
	c.items[key] = el

	if c.ll.Len() > c.maxEntries {
		if oldest := c.ll.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if ok {
		c.removeElement(el)
	}
	return ok
}

// ClearExpired removes every expired entry and returns how many were dropped.
func (c *MemoryCache) ClearExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*lruItem).entry.Expired(now) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

// ClearAll empties the tier and returns how many entries were dropped.
func (c *MemoryCache) ClearAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.ll.Len()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	return n
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Snapshot returns entry counts and accumulated hits for the stats surface.
func (c *MemoryCache) Snapshot(now time.Time) (total, active, expired, hits int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.ll.Front(); el != nil; el = el.Next() {
		item := el.Value.(*lruItem)
		total++
		hits += item.entry.HitCount
		if item.entry.Expired(now) {
			expired++
		} else {
			active++
		}
	}
	return total, active, expired, hits
}

// caller holds c.mu
func (c *MemoryCache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*lruItem).key)
}
