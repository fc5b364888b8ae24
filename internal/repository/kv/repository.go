package kv

import (
	"context"
	"strings"
)

// Store is a single-slot-per-key string store with last-write-wins semantics.
// Get returns domain.ErrNotFound for an absent key; Remove of an absent key
// is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Pinger is implemented by stores backed by a network service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type scoped struct {
	inner  Store
	prefix string
}

// Scoped returns a view of inner where every key is prefixed, e.g. with a
// device id, so callers keep using the fixed short keys.
func Scoped(inner Store, parts ...string) Store {
	return &scoped{inner: inner, prefix: strings.Join(parts, ":") + ":"}
}

func (s *scoped) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, s.prefix+key)
}
