// Package checkout persists the draft of an in-progress checkout in client
// storage so that it survives reloads.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"redbead/internal/domain"
	"redbead/internal/repository/kv"
)

const (
	// StorageKey is the single client-storage slot holding the draft.
	StorageKey = "checkout-state"
	// DefaultTTL is how long a draft stays valid after its last write.
	DefaultTTL = 30 * time.Minute
)

// NormalizeSessionID strips a query-string suffix from id.
func NormalizeSessionID(id string) string {
	if i := strings.IndexByte(id, '?'); i >= 0 {
		return id[:i]
	}
	return id
}

// Persistor reads and writes the draft for one checkout session. Storage
// failures never surface: they are logged and read as "no stored state".
type Persistor struct {
	store     kv.Store
	sessionID string
	clock     clockwork.Clock
	ttl       time.Duration
	logger    zerolog.Logger
}

// New binds a persistor to sessionID. An empty sessionID makes every write
// a no-op.
func New(store kv.Store, sessionID string, clock clockwork.Clock, ttl time.Duration, logger zerolog.Logger) *Persistor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Persistor{
		store:     store,
		sessionID: NormalizeSessionID(sessionID),
		clock:     clock,
		ttl:       ttl,
		logger:    logger.With().Str("checkout_session", NormalizeSessionID(sessionID)).Logger(),
	}
}

func (p *Persistor) SessionID() string {
	return p.sessionID
}

// GetStoredState returns the draft for this session, or nil. Corrupt and
// expired drafts are deleted; a draft of another session is left alone.
func (p *Persistor) GetStoredState(ctx context.Context) *domain.CheckoutState {
	if p.store == nil {
		return nil
	}
	raw, err := p.store.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn().Err(err).Msg("read checkout state")
		}
		return nil
	}

	var state domain.CheckoutState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		p.logger.Warn().Err(err).Msg("discarding corrupt checkout state")
		p.remove(ctx)
		return nil
	}

	age := p.clock.Now().UnixMilli() - state.Timestamp
	if age > p.ttl.Milliseconds() {
		p.logger.Debug().Int64("age_ms", age).Msg("discarding expired checkout state")
		p.remove(ctx)
		return nil
	}

	if state.SessionID != p.sessionID {
		return nil
	}
	return &state
}

// StoreState merges patch onto the stored draft and rewrites the slot.
func (p *Persistor) StoreState(ctx context.Context, patch domain.CheckoutPatch) {
	if p.sessionID == "" || p.store == nil {
		return
	}

	state := p.GetStoredState(ctx)
	if state == nil {
		state = &domain.CheckoutState{CurrentStep: 1}
	}
	patch.Apply(state)
	state.SessionID = p.sessionID
	state.Timestamp = p.clock.Now().UnixMilli()

	raw, err := json.Marshal(state)
	if err != nil {
		p.logger.Error().Err(err).Msg("encode checkout state")
		return
	}
	if err := p.store.Set(ctx, StorageKey, string(raw)); err != nil {
		p.logger.Warn().Err(err).Msg("write checkout state")
	}
}

// ClearStoredSession empties the slot whichever session owns it.
func (p *Persistor) ClearStoredSession(ctx context.Context) {
	if p.store == nil {
		return
	}
	p.remove(ctx)
}

func (p *Persistor) PersistStep(ctx context.Context, step int) {
	if step < 1 {
		p.logger.Warn().Int("step", step).Msg("ignoring invalid checkout step")
		return
	}
	p.StoreState(ctx, domain.CheckoutPatch{CurrentStep: &step})
}

// GetStoredStep defaults to the first step.
func (p *Persistor) GetStoredStep(ctx context.Context) int {
	if state := p.GetStoredState(ctx); state != nil && state.CurrentStep >= 1 {
		return state.CurrentStep
	}
	return 1
}

func (p *Persistor) PersistFormData(ctx context.Context, data domain.CheckoutFormData) {
	p.StoreState(ctx, domain.CheckoutPatch{CheckoutFormData: data})
}

// GetStoredFormData returns zero-valued form data when nothing is stored.
func (p *Persistor) GetStoredFormData(ctx context.Context) domain.CheckoutFormData {
	if state := p.GetStoredState(ctx); state != nil {
		return state.FormData()
	}
	return domain.CheckoutFormData{}
}

func (p *Persistor) HasValidSession(ctx context.Context) bool {
	state := p.GetStoredState(ctx)
	return state != nil && state.SessionID == p.sessionID
}

func (p *Persistor) remove(ctx context.Context) {
	if err := p.store.Remove(ctx, StorageKey); err != nil {
		p.logger.Warn().Err(err).Msg("remove checkout state")
	}
}
