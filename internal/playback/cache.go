package playback

import (
	"sync"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

// Cache holds the active sets one session has fetched. Entries never
// expire; they are dropped only by Invalidate or Clear.
type Cache struct {
	mu      sync.Mutex
	entries map[model.VideoKey][]model.Segment
}

func NewCache() *Cache {
	return &Cache{entries: make(map[model.VideoKey][]model.Segment)}
}

// Get returns a copy of the cached active set.
func (c *Cache) Get(key model.VideoKey) ([]model.Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	segs, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return append([]model.Segment(nil), segs...), true
}

func (c *Cache) Put(key model.VideoKey, segs []model.Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = append([]model.Segment(nil), segs...)
}

func (c *Cache) Invalidate(key model.VideoKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[model.VideoKey][]model.Segment)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
