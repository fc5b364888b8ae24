// Package guestsession keeps the guest cart session id in client storage,
// with the cart-session-id cookie as a fallback read path.
package guestsession

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"redbead/internal/domain"
	"redbead/internal/repository/kv"
)

const (
	// StorageKey is the client-storage key of the guest session id.
	StorageKey = "cart-session-id"
	// CookieName is the cookie mirroring the guest session id.
	CookieName = "cart-session-id"
)

// Store reads and writes the guest session id. A nil storage means no
// client storage is bound; writes are then no-ops.
type Store struct {
	storage kv.Store
	cookies CookieJar
	logger  zerolog.Logger
}

func New(storage kv.Store, cookies CookieJar, logger zerolog.Logger) *Store {
	return &Store{storage: storage, cookies: cookies, logger: logger}
}

// GuestSessionID returns the stored id, falling back to the cookie.
func (s *Store) GuestSessionID(ctx context.Context) (string, bool) {
	if s.storage != nil {
		id, err := s.storage.Get(ctx, StorageKey)
		switch {
		case err == nil && id != "":
			return id, true
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			s.logger.Warn().Err(err).Msg("read guest session from storage")
		}
	}
	if s.cookies != nil {
		if id, ok := s.cookies.Cookie(CookieName); ok {
			return id, true
		}
	}
	return "", false
}

// StoreGuestSessionID persists id. Empty ids are ignored.
func (s *Store) StoreGuestSessionID(ctx context.Context, id string) {
	if id == "" || s.storage == nil {
		return
	}
	if err := s.storage.Set(ctx, StorageKey, id); err != nil {
		s.logger.Warn().Err(err).Msg("store guest session")
	}
}

// ClearGuestSession removes the stored id and expires the cookie so that
// neither read path sees a stale value.
func (s *Store) ClearGuestSession(ctx context.Context) {
	if s.storage != nil {
		if err := s.storage.Remove(ctx, StorageKey); err != nil {
			s.logger.Warn().Err(err).Msg("clear guest session")
		}
	}
	if s.cookies != nil {
		s.cookies.Expire(CookieName)
	}
}
