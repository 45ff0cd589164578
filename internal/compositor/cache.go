package compositor

import (
	"sync"

	"github.com/roach88/navicue/internal/ir"
)

// Cache memoizes recipes by tuple key. Recipes are immutable, so one cache
// may be shared by every lesson instance in a host.
//
// Thread-safety: Cache is safe for concurrent use. Errors are not cached;
// a bad tuple fails the same way on every call.
type Cache struct {
	tables Tables

	mu      sync.RWMutex
	recipes map[string]ir.RenderRecipe
}

// NewCache creates an empty cache composing against tables.
func NewCache(tables Tables) *Cache {
	return &Cache{
		tables:  tables,
		recipes: make(map[string]ir.RenderRecipe),
	}
}

// Recipe returns the cached recipe for tuple, composing it on first use.
func (c *Cache) Recipe(tuple ir.SelectorTuple) (ir.RenderRecipe, error) {
	key := tuple.Key()

	c.mu.RLock()
	r, ok := c.recipes[key]
	c.mu.RUnlock()
	if ok {
		return r, nil
	}

	r, err := Compose(c.tables, tuple)
	if err != nil {
		return ir.RenderRecipe{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent caller may have stored the same recipe; Compose is pure,
	// so either copy is correct.
	if existing, ok := c.recipes[key]; ok {
		return existing, nil
	}
	c.recipes[key] = r
	return r, nil
}

// Len returns the number of cached recipes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.recipes)
}
