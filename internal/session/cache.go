package session

import (
	"container/list"
	"sync"
	"time"
)

const DefaultCacheEntries = 32

// Cache maps a video ID to its summary. It is bounded, entries expire
// after ttl, and Set overwrites an existing entry instead of adding one.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	ttl        time.Duration
}

type cacheEntry struct {
	videoID   string
	result    Result
	expiresAt time.Time
}

// NewCache returns a cache holding at most maxEntries results. A ttl of
// zero keeps entries until they are evicted or purged.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}

	return &Cache{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (c *Cache) Get(videoID string, now time.Time) (Result, bool) {
	if videoID == "" {
		return Result{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[videoID]
	if !ok {
		return Result{}, false
	}

	entry := elem.Value.(*cacheEntry) //nolint:forcetypeassert // only *cacheEntry is stored

	if c.expired(entry, now) {
		c.removeElement(elem)

		return Result{}, false
	}

	c.order.MoveToFront(elem)

	return entry.result, true
}

func (c *Cache) Set(videoID string, result Result, now time.Time) {
	if videoID == "" || result.Summary == "" {
		return
	}

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = now.Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[videoID]; ok {
		entry := elem.Value.(*cacheEntry) //nolint:forcetypeassert // only *cacheEntry is stored
		entry.result = result
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	elem := c.order.PushFront(&cacheEntry{
		videoID:   videoID,
		result:    result,
		expiresAt: expiresAt,
	})
	c.entries[videoID] = elem

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element, c.maxEntries)
	c.order.Init()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Cache) expired(entry *cacheEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && now.After(entry.expiresAt)
}

func (c *Cache) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if c.expired(elem.Value.(*cacheEntry), now) { //nolint:forcetypeassert // only *cacheEntry is stored
			c.removeElement(elem)
		}

		elem = prev
	}
}

func (c *Cache) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *Cache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry) //nolint:forcetypeassert // only *cacheEntry is stored

	delete(c.entries, entry.videoID)
	c.order.Remove(elem)
}
