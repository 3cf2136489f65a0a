// Package embedcache provides a process-local, unbounded, non-persistent
// cache from content hash to embedding vector, keyed the same way the
// teacher's in-memory stores are (ai/memory/in_memory.go): a mutex-guarded
// map returning defensive copies. singleflight collapses concurrent
// duplicate computations for the same hash into a single backend call.
package embedcache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache maps a content hash to its embedding vector. Writes are monotone:
// once a hash has a vector, re-computing it is wasted but never incorrect
// (last writer wins with an identical value, since the hash determines the
// input text).
type Cache struct {
	mu    sync.RWMutex
	store map[string][]float64

	group singleflight.Group
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{store: make(map[string][]float64)}
}

// Get returns the cached vector for hash, if present.
func (c *Cache) Get(hash string) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.store[hash]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out, true
}

// Set stores vector under hash.
func (c *Cache) Set(hash string, vector []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]float64, len(vector))
	copy(stored, vector)
	c.store[hash] = stored
}

// GetOrCompute returns the cached vector for hash, computing it via compute
// on a miss. Concurrent callers racing on the same hash share a single
// in-flight compute call.
func (c *Cache) GetOrCompute(ctx context.Context, hash string, compute func(context.Context) ([]float64, error)) ([]float64, error) {
	if v, ok := c.Get(hash); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(hash, func() (any, error) {
		if v, ok := c.Get(hash); ok {
			return v, nil
		}
		computed, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(hash, computed)
		return computed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
