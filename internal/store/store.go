// Package store holds the fetched list of one entity type for the console.
// Lists change only after the repository confirms an operation; nothing is
// applied optimistically.
package store

import (
	"context"
	"sync"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/repository"
)

// Collection caches the result of the last successful List and applies
// confirmed creates, updates and deletes to it.
type Collection[T domain.Entity[T]] struct {
	repo repository.Repository[T]

	mu     sync.RWMutex
	items  []T
	loaded bool
}

// New wraps repo.
func New[T domain.Entity[T]](repo repository.Repository[T]) *Collection[T] {
	return &Collection[T]{repo: repo}
}

// Items returns a copy of the cached list.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item.Clone())
	}
	return out
}

// Loaded reports whether a List has succeeded yet.
func (c *Collection[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Refresh replaces the cache with the repository's list. On error the cache
// is left as it was.
func (c *Collection[T]) Refresh(ctx context.Context) ([]T, error) {
	items, err := c.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.items = items
	c.loaded = true
	c.mu.Unlock()
	return c.Items(), nil
}

// Find returns the cached item with id.
func (c *Collection[T]) Find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.Key() == id {
			return item.Clone(), true
		}
	}
	var zero T
	return zero, false
}

// Create persists item and appends the stored version.
func (c *Collection[T]) Create(ctx context.Context, item T) (T, error) {
	stored, err := c.repo.Create(ctx, item)
	if err != nil {
		var zero T
		return zero, err
	}
	c.mu.Lock()
	c.items = append(c.items, stored.Clone())
	c.mu.Unlock()
	return stored, nil
}

// Update persists item and replaces the cached entry in place.
func (c *Collection[T]) Update(ctx context.Context, item T) (T, error) {
	stored, err := c.repo.Update(ctx, item)
	if err != nil {
		var zero T
		return zero, err
	}
	c.mu.Lock()
	replaced := false
	for idx, existing := range c.items {
		if existing.Key() == stored.Key() {
			c.items[idx] = stored.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		c.items = append(c.items, stored.Clone())
	}
	c.mu.Unlock()
	return stored, nil
}

// Delete removes id from the repository, then from the cache.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.repo.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	for idx, existing := range c.items {
		if existing.Key() == id {
			c.items = append(c.items[:idx:idx], c.items[idx+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return nil
}
