package notify

import (
	"sync"

	"github.com/nhle/lms-client/internal/model"
)

// Cache is the client-side copy of the user's notifications, kept in
// server order. Unread counts are derived from the items on every call.
type Cache struct {
	mu    sync.RWMutex
	items []model.NotificationItem
	// version changes whenever the list is replaced by a fetch.
	version uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps in a freshly fetched list.
func (c *Cache) Replace(items []model.NotificationItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]model.NotificationItem(nil), items...)
	c.version++
}

// Items returns a copy of the cached list.
func (c *Cache) Items() []model.NotificationItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.NotificationItem(nil), c.items...)
}

// Version identifies the fetched list the cache currently holds.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// MarkRead flips one item to read. It reports whether the item was unread
// and the version the flip applied to.
func (c *Cache) MarkRead(id string) (bool, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			if c.items[i].IsRead {
				return false, c.version
			}
			c.items[i].IsRead = true
			return true, c.version
		}
	}
	return false, c.version
}

// MarkAllRead flips every item to read and returns the IDs it changed.
func (c *Cache) MarkAllRead() ([]string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var flipped []string
	for i := range c.items {
		if !c.items[i].IsRead {
			c.items[i].IsRead = true
			flipped = append(flipped, c.items[i].ID)
		}
	}
	return flipped, c.version
}

// Revert marks ids unread again, but only if the list is still the one
// the optimistic flip was applied to. It returns how many items changed.
func (c *Cache) Revert(ids []string, version uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.version || len(ids) == 0 {
		return 0
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	n := 0
	for i := range c.items {
		if want[c.items[i].ID] && c.items[i].IsRead {
			c.items[i].IsRead = false
			n++
		}
	}
	return n
}

// UnreadCount is the number of items with IsRead false.
func (c *Cache) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		if !it.IsRead {
			n++
		}
	}
	return n
}

// UnreadMessageCount counts unread items of kind message.
func (c *Cache) UnreadMessageCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		if !it.IsRead && it.Kind == model.NotificationMessage {
			n++
		}
	}
	return n
}
