package cache

import (
	"sync"
)

// ResourceCache caches resolved scene resources by path so that broadcasting
// a file load to many worlds reads the file once.
type ResourceCache struct {
	m     sync.Mutex
	items map[string][]byte
	hits  int
}

func NewResourceCache() *ResourceCache {
	return &ResourceCache{
		items: make(map[string][]byte),
	}
}

func (c *ResourceCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.items = make(map[string][]byte)
	c.hits = 0
}

func (c *ResourceCache) Get(path string) ([]byte, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if data, ok := c.items[path]; ok {
		c.hits++
		return data, true
	}
	return nil, false
}

func (c *ResourceCache) Set(path string, data []byte) {
	c.m.Lock()
	defer c.m.Unlock()
	c.items[path] = data
}

// GetOrLoad returns the cached data for path, calling load on a miss.
// Failed loads are not cached.
func (c *ResourceCache) GetOrLoad(path string, load func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.Get(path); ok {
		return data, nil
	}
	data, err := load()
	if err != nil {
		return nil, err
	}
	c.Set(path, data)
	return data, nil
}

// Hits returns the number of cache hits since the last reset.
func (c *ResourceCache) Hits() int {
	c.m.Lock()
	defer c.m.Unlock()
	return c.hits
}

// Len returns the number of cached resources.
func (c *ResourceCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.items)
}
