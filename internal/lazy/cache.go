package lazy

import (
	"context"
	"sync"
)

// Cache holds one Entity per key, created on first use with the fetcher that
// newFetcher builds for that key. Entities for different keys never wait on
// each other.
type Cache[K comparable, T any] struct {
	newFetcher func(K) Fetcher[T]

	mu       sync.Mutex
	entities map[K]*Entity[T]
}

func NewCache[K comparable, T any](newFetcher func(K) Fetcher[T]) *Cache[K, T] {
	return &Cache[K, T]{
		newFetcher: newFetcher,
		entities:   make(map[K]*Entity[T]),
	}
}

// Entity returns the entity for key, creating it if needed.
func (c *Cache[K, T]) Entity(key K) *Entity[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entities[key]
	if !ok {
		e = New(c.newFetcher(key))
		c.entities[key] = e
	}
	return e
}

func (c *Cache[K, T]) Get(ctx context.Context, key K) (T, error) {
	return c.Entity(key).Get(ctx)
}

// Reset drops the cached value for key, if any.
func (c *Cache[K, T]) Reset(key K) {
	c.mu.Lock()
	e, ok := c.entities[key]
	c.mu.Unlock()
	if ok {
		e.Reset()
	}
}

func (c *Cache[K, T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entities)
}
