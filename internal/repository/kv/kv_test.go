package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redbead/internal/domain"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Set(ctx, "k", "v1"))
	require.NoError(t, store.Set(ctx, "k", "v2"))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	require.NoError(t, store.Remove(ctx, "k"))
	require.NoError(t, store.Remove(ctx, "k"))
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestBadgerInMemory(t *testing.T) {
	store, closeFn, err := OpenBadger("")
	require.NoError(t, err)
	defer closeFn()
	exerciseStore(t, store)
}

func TestScoped_IsolatesPrefixes(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	a := Scoped(mem, "device", "a")
	b := Scoped(mem, "device", "b")

	exerciseStore(t, a)

	require.NoError(t, a.Set(ctx, "cart-session-id", "guest-a"))
	_, err := b.Get(ctx, "cart-session-id")
	require.ErrorIs(t, err, domain.ErrNotFound)

	raw, err := mem.Get(ctx, "device:a:cart-session-id")
	require.NoError(t, err)
	assert.Equal(t, "guest-a", raw)
}
