// Package cartcache is the read-through cache of remote carts the merge
// flow invalidates and refetches.
package cartcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"redbead/internal/domain"
	"redbead/internal/repository/kv"
)

// Fetcher loads the cart from the backend with the shopper's credentials.
type Fetcher interface {
	FetchCart(ctx context.Context) (*domain.Cart, error)
}

type entry struct {
	Cart      domain.Cart `json:"cart"`
	FetchedAt time.Time   `json:"fetchedAt"`
}

type Cache struct {
	store  kv.Store
	clock  clockwork.Clock
	maxAge time.Duration
	logger zerolog.Logger
}

// New caches carts in store for maxAge.
func New(store kv.Store, clock clockwork.Clock, maxAge time.Duration, logger zerolog.Logger) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{store: store, clock: clock, maxAge: maxAge, logger: logger}
}

func key(userID string) string {
	return "cart:" + userID
}

// Get returns the cached cart for userID, fetching it when absent or stale.
func (c *Cache) Get(ctx context.Context, userID string, fetch Fetcher) (*domain.Cart, error) {
	raw, err := c.store.Get(ctx, key(userID))
	if err == nil {
		var e entry
		if jsonErr := json.Unmarshal([]byte(raw), &e); jsonErr == nil && c.clock.Now().Sub(e.FetchedAt) <= c.maxAge {
			return &e.Cart, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("read cached cart")
	}
	return c.Refetch(ctx, userID, fetch)
}

// Invalidate drops the cached cart for userID.
func (c *Cache) Invalidate(ctx context.Context, userID string) {
	if err := c.store.Remove(ctx, key(userID)); err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("invalidate cached cart")
	}
}

// Refetch loads the cart from the backend and replaces the cached copy.
func (c *Cache) Refetch(ctx context.Context, userID string, fetch Fetcher) (*domain.Cart, error) {
	cart, err := fetch.FetchCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	raw, err := json.Marshal(entry{Cart: *cart, FetchedAt: c.clock.Now()})
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	if err := c.store.Set(ctx, key(userID), string(raw)); err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("cache cart")
	}
	return cart, nil
}
