package registry

import (
	"context"
	"sync"

	"github.com/quartierlabs/prospector/internal/match"
)

// CandidateLoader loads the annotated matching candidates of one
// department.
type CandidateLoader func(ctx context.Context, dept string) ([]match.Candidate, error)

// Cache is a bounded department → candidate-pool cache. Departments
// load lazily on first access; when the bound is exceeded the
// oldest-inserted department is evicted (insertion-order FIFO, not
// LRU). Many combos share a department, so one registry read serves a
// whole trade column.
type Cache struct {
	mu     sync.Mutex
	limit  int
	loader CandidateLoader
	pools  map[string][]match.Candidate
	order  []string
}

// NewCache builds a Cache evicting beyond limit departments.
func NewCache(limit int, loader CandidateLoader) *Cache {
	if limit <= 0 {
		limit = 20
	}
	return &Cache{
		limit:  limit,
		loader: loader,
		pools:  make(map[string][]match.Candidate),
	}
}

// Get returns the candidate pool of dept, loading it on first access.
// The returned slice is shared; callers must not mutate it.
func (c *Cache) Get(ctx context.Context, dept string) ([]match.Candidate, error) {
	c.mu.Lock()
	if pool, ok := c.pools[dept]; ok {
		c.mu.Unlock()
		return pool, nil
	}
	c.mu.Unlock()

	// Load outside the lock; a duplicate load between two workers is
	// harmless and cheaper than serializing all departments behind one
	// registry read.
	pool, err := c.loader(ctx, dept)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.pools[dept]; ok {
		return existing, nil
	}
	c.pools[dept] = pool
	c.order = append(c.order, dept)
	if len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.pools, oldest)
	}
	return pool, nil
}

// Len reports the number of cached departments.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pools)
}
