package signal

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultReplayCapacity = 65536
	evictInterval         = 5 * time.Second

	// evictionGrace keeps entries a little past the temporal window so an
	// entry is never dropped while its signal could still pass the
	// temporal check under clock skew.
	evictionGrace = time.Minute
)

type replayKey struct {
	entropy   uint64
	timestamp int64
}

// replayCache remembers admitted signals. An entry may only age out after
// its timestamp has left the temporal acceptance window; dropping it earlier
// would reopen a replay hole.
type replayCache struct {
	mu       sync.Mutex
	entries  map[replayKey]struct{}
	capacity int
	maxAge   time.Duration
	evict    rate.Sometimes
}

func newReplayCache(capacity int, maxAge time.Duration) *replayCache {
	if capacity <= 0 {
		capacity = defaultReplayCapacity
	}
	return &replayCache{
		entries:  make(map[replayKey]struct{}),
		capacity: capacity,
		maxAge:   maxAge,
		evict:    rate.Sometimes{Interval: evictInterval},
	}
}

// admit is the single atomic check-and-insert for one candidate signal: two
// concurrent validations of the same captured signal cannot both succeed.
func (c *replayCache) admit(key replayKey, nowNanos int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.entries[key]; seen {
		return false
	}
	c.entries[key] = struct{}{}
	if len(c.entries) > c.capacity {
		c.evictExpiredLocked(nowNanos)
	} else {
		c.evict.Do(func() { c.evictExpiredLocked(nowNanos) })
	}
	return true
}

func (c *replayCache) seen(key replayKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func (c *replayCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictExpiredLocked drops entries whose signals can no longer pass the
// temporal check. The capacity bound is soft: unexpired entries are never
// evicted even when the cache runs over capacity.
func (c *replayCache) evictExpiredLocked(nowNanos int64) {
	horizon := int64(c.maxAge + evictionGrace)
	for key := range c.entries {
		if nowNanos-key.timestamp > horizon {
			delete(c.entries, key)
		}
	}
}
