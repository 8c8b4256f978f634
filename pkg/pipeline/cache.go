package pipeline

import "sync"

// resultCache is the bounded in-memory idempotency cache. A second call
// with the same key returns the exact cached result without re-executing
// side effects, for the lifetime of the process. Eviction is oldest-first
// once the bound is reached.
type resultCache struct {
	mu     sync.Mutex
	max    int
	order  []string
	values map[string]any
}

func newResultCache(max int) *resultCache {
	return &resultCache{
		max:    max,
		values: make(map[string]any),
	}
}

func (c *resultCache) get(key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.values[key]
	return v, ok
}

func (c *resultCache) put(key string, v any) {
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.values[key]; !ok {
		c.order = append(c.order, key)
	}
	c.values[key] = v

	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.values, oldest)
	}
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
