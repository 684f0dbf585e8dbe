package dedupe

import (
	"sync"
	"time"
)

type seenEntry struct {
	key string
	ts  time.Time
}

// SeenCache keeps a fixed-size set of recently processed run keys so a
// redelivered run request is not extracted twice inside the ttl window.
type SeenCache struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []seenEntry
	capacity int
	ttl      time.Duration
}

// NewSeenCache creates a cache with the provided capacity and ttl.
func NewSeenCache(capacity int, ttl time.Duration) *SeenCache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SeenCache{
		items:    make(map[string]time.Time, capacity),
		order:    make([]seenEntry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// IsSeen returns true when the key has already been observed inside the ttl
// window. It does not mark the key; use MarkSeen to record one.
func (c *SeenCache) IsSeen(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.items[key]; ok {
		if now.Sub(ts) <= c.ttl {
			return true
		}
	}
	return false
}

// MarkSeen records that a run key has been processed.
func (c *SeenCache) MarkSeen(key string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = now
	c.order = append(c.order, seenEntry{key: key, ts: now})
	c.compact(now)
}

func (c *SeenCache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if ts, ok := c.items[oldest.key]; ok {
			if ts == oldest.ts {
				delete(c.items, oldest.key)
			}
		}
	}
}
