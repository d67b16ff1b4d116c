package users

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/fIIame/NeurooAiBot/core"
)

// CachedStore fronts a Store with a ristretto cache over the
// activation flag, which is read on every turn but changes at most
// once per user. Writes pass through and invalidate.
type CachedStore struct {
	inner Store
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedStore wraps a store with an activation-flag cache.
func NewCachedStore(inner Store, ttl time.Duration) (*CachedStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create activation cache: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{inner: inner, cache: cache, ttl: ttl}, nil
}

func (c *CachedStore) Ensure(ctx context.Context, id int64, firstName string) error {
	return c.inner.Ensure(ctx, id, firstName)
}

func (c *CachedStore) Get(ctx context.Context, id int64) (*core.User, error) {
	return c.inner.Get(ctx, id)
}

func (c *CachedStore) Activate(ctx context.Context, id int64) error {
	if err := c.inner.Activate(ctx, id); err != nil {
		return err
	}
	c.cache.Del(id)
	return nil
}

func (c *CachedStore) IsActivated(ctx context.Context, id int64) (bool, error) {
	if v, ok := c.cache.Get(id); ok {
		return v.(bool), nil
	}
	activated, err := c.inner.IsActivated(ctx, id)
	if err != nil {
		return false, err
	}
	// Only cache the positive answer: a not-yet-activated user should
	// see their activation take effect immediately.
	if activated {
		c.cache.SetWithTTL(id, true, 1, c.ttl)
	}
	return activated, nil
}
