package cartcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redbead/internal/domain"
	"redbead/internal/pkg/logx"
	"redbead/internal/repository/kv"
)

type countingFetcher struct {
	calls int
	cart  domain.Cart
	err   error
}

func (f *countingFetcher) FetchCart(context.Context) (*domain.Cart, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c := f.cart
	return &c, nil
}

func TestGet_ReadsThroughOnce(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	cache := New(kv.NewMemory(), fc, time.Minute, logx.Discard())
	fetch := &countingFetcher{cart: domain.Cart{ID: "c1", TotalCents: 1999}}

	first, err := cache.Get(ctx, "u1", fetch)
	require.NoError(t, err)
	second, err := cache.Get(ctx, "u1", fetch)
	require.NoError(t, err)

	assert.Equal(t, "c1", first.ID)
	assert.Equal(t, int64(1999), second.TotalCents)
	assert.Equal(t, 1, fetch.calls)

	fc.Advance(2 * time.Minute)
	_, err = cache.Get(ctx, "u1", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, fetch.calls)
}

func TestInvalidate_ForcesFetch(t *testing.T) {
	ctx := context.Background()
	cache := New(kv.NewMemory(), clockwork.NewFakeClock(), time.Hour, logx.Discard())
	fetch := &countingFetcher{cart: domain.Cart{ID: "c1"}}

	_, err := cache.Get(ctx, "u1", fetch)
	require.NoError(t, err)
	cache.Invalidate(ctx, "u1")
	_, err = cache.Get(ctx, "u1", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, fetch.calls)
}

func TestRefetch_PropagatesFetchError(t *testing.T) {
	cache := New(kv.NewMemory(), nil, time.Hour, logx.Discard())
	_, err := cache.Refetch(context.Background(), "u1", &countingFetcher{err: errors.New("down")})
	require.Error(t, err)
}
