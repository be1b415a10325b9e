package persistence

import (
	"sort"
	"sync"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/model"
)

// Cache keeps the most recent reading of every device.
type Cache struct {
	mu     sync.RWMutex
	latest map[string]model.DecodedReading
}

func NewCache() *Cache {
	return &Cache{latest: make(map[string]model.DecodedReading)}
}

// Put stores r unless a newer reading of the same device is cached.
func (c *Cache) Put(r model.DecodedReading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.latest[r.DeviceID]; ok && cur.ReceivedAt.After(r.ReceivedAt) {
		return
	}
	c.latest[r.DeviceID] = r
}

func (c *Cache) Get(deviceID string) (model.DecodedReading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.latest[deviceID]
	return r, ok
}

// Latest returns every cached reading sorted by device id.
func (c *Cache) Latest() []model.DecodedReading {
	c.mu.RLock()
	out := make([]model.DecodedReading, 0, len(c.latest))
	for _, r := range c.latest {
		out = append(out, r)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}
