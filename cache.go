package pubadmin

import (
	"context"
	"sync"
	"time"
)

// CachedStore wraps a PostStore and keeps its listing in memory with a TTL.
// Every mutation made through it invalidates the listing.
type CachedStore struct {
	mu      sync.RWMutex
	refs    []PostRef
	fetched time.Time
	ttl     time.Duration
	store   PostStore
}

// NewCachedStore creates a CachedStore in front of s. A ttl of zero or less
// disables caching.
func NewCachedStore(s PostStore, ttl time.Duration) *CachedStore {
	return &CachedStore{store: s, ttl: ttl}
}

// Unwrap returns the wrapped store.
func (c *CachedStore) Unwrap() PostStore { return c.store }

func (c *CachedStore) valid() bool {
	return c.refs != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next List triggers a fresh load.
func (c *CachedStore) Invalidate() {
	c.mu.Lock()
	c.refs = nil
	c.mu.Unlock()
}

// List returns the cached listing, loading it when stale.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *CachedStore) List(ctx context.Context) ([]PostRef, error) {
	c.mu.RLock()
	if c.valid() {
		refs := c.refs
		c.mu.RUnlock()
		return refs, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.refs, nil
	}
	refs, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 {
		c.refs = refs
		c.fetched = time.Now()
	}
	return refs, nil
}

func (c *CachedStore) Read(ctx context.Context, ref PostRef) (Post, error) {
	return c.store.Read(ctx, ref)
}

func (c *CachedStore) Create(ctx context.Context, d Draft) (Post, error) {
	defer c.Invalidate()
	return c.store.Create(ctx, d)
}

func (c *CachedStore) Update(ctx context.Context, ref PostRef, d Draft) (Post, error) {
	defer c.Invalidate()
	return c.store.Update(ctx, ref, d)
}

func (c *CachedStore) Delete(ctx context.Context, ref PostRef) error {
	defer c.Invalidate()
	return c.store.Delete(ctx, ref)
}

// Unwrap peels CachedStore layers off store so optional capabilities
// (Renderer, AssetStore) of the underlying store can be found.
func Unwrap(store PostStore) PostStore {
	for {
		u, ok := store.(interface{ Unwrap() PostStore })
		if !ok {
			return store
		}
		store = u.Unwrap()
	}
}
