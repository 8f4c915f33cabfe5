package store

import (
	"sync"
	"time"

	"github.com/g-ogaki/assistant-ui-langgraph/internal/upstream"
)

// DefaultTTL bounds how stale a cached thread listing may get when no
// invalidation happens (e.g. a thread created from another tab).
const DefaultTTL = 30 * time.Second

type listingCache struct {
	Threads   []upstream.ThreadInfo
	UpdatedAt time.Time
}

// ThreadCache holds the most recent thread listing per guest. Writes are
// rare (one per listing fetch); the orchestrator invalidates a guest's
// entry after creating or deleting a thread so the next read refetches.
type ThreadCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	byGuest map[string]listingCache
}

func NewThreadCache(ttl time.Duration) *ThreadCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ThreadCache{
		ttl:     ttl,
		byGuest: make(map[string]listingCache),
	}
}

func (c *ThreadCache) Set(guestID string, threads []upstream.ThreadInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byGuest[guestID] = listingCache{
		Threads:   append([]upstream.ThreadInfo(nil), threads...),
		UpdatedAt: time.Now(),
	}
}

// Get returns the cached listing if within TTL.
func (c *ThreadCache) Get(guestID string) ([]upstream.ThreadInfo, bool) {
	c.mu.RLock()
	entry, ok := c.byGuest[guestID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(entry.UpdatedAt) > c.ttl {
		c.Invalidate(guestID)
		return nil, false
	}
	out := append([]upstream.ThreadInfo(nil), entry.Threads...)
	return out, true
}

func (c *ThreadCache) Invalidate(guestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byGuest, guestID)
}
