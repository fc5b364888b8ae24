// Package session is the per-connection composition root: one Shell per
// websocket mount, owning the guest session store, the merge orchestrator,
// the checkout watchdogs and the inactivity timer of that mount.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"redbead/internal/config"
	"redbead/internal/domain"
	"redbead/internal/metrics"
	"redbead/internal/pkg/errs"
	"redbead/internal/repository/kv"
	"redbead/internal/schedule"
	"redbead/internal/service/cartcache"
	"redbead/internal/service/cartmerge"
	"redbead/internal/service/checkout"
	"redbead/internal/service/guestsession"
	"redbead/internal/service/inactivity"
	"redbead/internal/service/watchdog"
)

// Backend is the remote API as seen by one shopper.
type Backend interface {
	MergeGuestCart(ctx context.Context, sessionID string) (domain.MergeResult, error)
	FetchCart(ctx context.Context) (*domain.Cart, error)
	FetchCheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error)
	CurrentUserProfile(ctx context.Context) (*domain.UserProfile, error)
	SignOut(ctx context.Context) error
}

// Emitter delivers events to the client.
type Emitter interface {
	Emit(e Event)
}

// Options are the timing knobs of a mount.
type Options struct {
	// InactivityTimeout of zero disables the sign-out timer.
	InactivityTimeout time.Duration
	WatchdogInterval  time.Duration
	WatchdogWarning   time.Duration
	MergeRefetchDelay time.Duration
	CheckoutStateTTL  time.Duration
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		InactivityTimeout: cfg.InactivityTimeout,
		WatchdogInterval:  cfg.WatchdogInterval,
		WatchdogWarning:   cfg.WatchdogWarning,
		MergeRefetchDelay: cfg.MergeRefetchDelay,
		CheckoutStateTTL:  cfg.CheckoutStateTTL,
	}
}

type Deps struct {
	Backend Backend
	// Storage is the device-scoped client storage.
	Storage kv.Store
	// CookieHeader is the Cookie header of the upgrade request.
	CookieHeader string
	Carts        *cartcache.Cache
	Emitter      Emitter
	Clock        clockwork.Clock
	Options      Options
	Logger       zerolog.Logger
}

type checkoutWatch struct {
	persistor *checkout.Persistor
	dog       *watchdog.Watchdog
}

type Shell struct {
	backend Backend
	storage kv.Store
	carts   *cartcache.Cache
	emitter Emitter
	opts    Options
	clock   clockwork.Clock
	tasks   *schedule.Group
	logger  zerolog.Logger

	guest *guestsession.Store
	merge *cartmerge.Orchestrator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	opened    bool
	closed    bool
	profile   *domain.UserProfile
	idle      *inactivity.Timer
	checkouts map[string]*checkoutWatch
}

func New(d Deps) *Shell {
	clock := d.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Shell{
		backend:   d.Backend,
		storage:   d.Storage,
		carts:     d.Carts,
		emitter:   d.Emitter,
		opts:      d.Options,
		clock:     clock,
		tasks:     schedule.NewGroup(clock),
		logger:    d.Logger,
		ctx:       ctx,
		cancel:    cancel,
		checkouts: make(map[string]*checkoutWatch),
	}

	jar := guestsession.NewHeaderJar(d.CookieHeader, func(name string) {
		s.emit(EventCookieExpire, cookiePayload{Name: name})
	})
	s.guest = guestsession.New(d.Storage, jar, d.Logger.With().Str("component", "guestsession").Logger())
	s.merge = cartmerge.New(s.guest, cartService{s}, ui{s}, s.tasks, cartmerge.Config{
		RefetchDelay: d.Options.MergeRefetchDelay,
		OnStateChange: func(st cartmerge.State) {
			s.emit(EventMergeState, mergeStatePayload{State: st.String()})
		},
	}, d.Logger.With().Str("component", "cartmerge").Logger())
	return s
}

// Open mounts the session: the profile is resolved in the background and
// the merge check runs once it settles.
func (s *Shell) Open() {
	s.mu.Lock()
	if s.opened || s.closed {
		s.mu.Unlock()
		return
	}
	s.opened = true
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	s.async(s.refreshAuth)
}

// Close unmounts the session. Every timer, watchdog and scheduled task is
// cancelled and in-flight work is waited for.
func (s *Shell) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	opened := s.opened
	idle := s.idle
	s.idle = nil
	watches := s.checkouts
	s.checkouts = map[string]*checkoutWatch{}
	s.mu.Unlock()

	s.cancel()
	if idle != nil {
		idle.Stop()
	}
	for _, w := range watches {
		w.dog.Stop()
	}
	s.tasks.Close()
	s.wg.Wait()
	if opened {
		metrics.ActiveSessions.Dec()
	}
}

// Handle dispatches one inbound message. Calls are expected in arrival
// order from a single reader.
func (s *Shell) Handle(raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		s.logger.Warn().Err(err).Msg("client sent invalid JSON")
		s.sendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch in.Type {
	case TypeActivity:
		var p activityPayload
		if s.decode(in.Payload, &p) {
			s.activity(p.Event)
		}
	case TypeStaySignedIn:
		if idle := s.idleTimer(); idle != nil {
			idle.ResetTimer()
		}
	case TypeAuthRefresh:
		s.async(s.refreshAuth)
	case TypeCartMerge:
		s.async(s.manualMerge)
	case TypeCheckoutWatch:
		var p checkoutRef
		if s.decode(in.Payload, &p) {
			s.watchCheckout(p.SessionID)
		}
	case TypeCheckoutUnwatch:
		var p checkoutRef
		if s.decode(in.Payload, &p) {
			s.unwatchCheckout(p.SessionID)
		}
	case TypeCheckoutRefresh:
		var p checkoutRef
		if s.decode(in.Payload, &p) {
			s.refreshCheckout(p.SessionID)
		}
	case TypeCheckoutSave:
		var p checkoutSavePayload
		if s.decode(in.Payload, &p) {
			s.saveCheckout(p)
		}
	default:
		s.logger.Warn().Str("msg_type", string(in.Type)).Msg("client sent unsupported message type")
		s.sendError(errs.NewError(errs.ErrUnsupportedType, string(in.Type)))
	}
}

func (s *Shell) decode(payload json.RawMessage, v any) bool {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		s.logger.Warn().Err(err).Msg("client sent invalid payload")
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return false
	}
	return true
}

func (s *Shell) refreshAuth() {
	s.merge.Check(s.ctx, cartmerge.AuthSnapshot{Loading: true})

	profile, err := s.backend.CurrentUserProfile(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Msg("resolve user profile")
		profile = nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.profile = profile
	s.mu.Unlock()

	snap := cartmerge.AuthSnapshot{}
	if profile != nil {
		snap.ProfileID = profile.ID
	}
	s.emit(EventAuthState, authPayload{Authenticated: profile != nil, Profile: profile})
	s.merge.Check(s.ctx, snap)
	s.syncInactivity(profile != nil)
}

func (s *Shell) syncInactivity(authenticated bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var start, stop *inactivity.Timer
	switch {
	case authenticated && s.idle == nil && s.opts.InactivityTimeout > 0:
		s.idle = inactivity.New(s.backend, ui{s}, s.tasks, inactivity.Config{
			Timeout: s.opts.InactivityTimeout,
			OnChange: func(snap inactivity.Snapshot) {
				s.emit(EventInactivity, snap)
			},
		}, s.logger.With().Str("component", "inactivity").Logger())
		start = s.idle
	case !authenticated && s.idle != nil:
		stop = s.idle
		s.idle = nil
	}
	s.mu.Unlock()

	if start != nil {
		start.Start(s.ctx)
	}
	if stop != nil {
		stop.Stop()
	}
}

func (s *Shell) idleTimer() *inactivity.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

func (s *Shell) activity(event string) {
	if idle := s.idleTimer(); idle != nil {
		idle.Activity(event)
	}
}

func (s *Shell) manualMerge() {
	err := s.merge.ManualMerge(s.ctx, cartmerge.AuthSnapshot{ProfileID: s.userID()})
	if errors.Is(err, cartmerge.ErrMergeInProgress) {
		s.sendError(errs.NewError(errs.ErrMergeInProgress))
	}
}

func (s *Shell) userID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return ""
	}
	return s.profile.ID
}

func (s *Shell) watchCheckout(rawID string) {
	id := checkout.NormalizeSessionID(rawID)
	if id == "" {
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	w, exists := s.checkouts[id]
	if !exists {
		w = &checkoutWatch{}
		logger := s.logger.With().Str("component", "checkout").Logger()
		persistor := checkout.New(s.storage, id, s.clock, s.opts.CheckoutStateTTL, logger)
		dog := watchdog.New(s.backend, persistor, ui{s}, ui{s}, s.tasks, watchdog.Config{
			SessionID:        id,
			WarningThreshold: s.opts.WatchdogWarning,
			Interval:         s.opts.WatchdogInterval,
			OnExpire: func() {
				s.forgetCheckout(id, w)
				ui{s}.Navigate(watchdog.FallbackPath)
			},
			OnStatus: func(st watchdog.Status) {
				s.emit(EventCheckoutExpiry, checkoutExpiryPayload{
					SessionID:         st.SessionID,
					ExpiresAt:         st.ExpiresAt.UnixMilli(),
					MillisUntilExpiry: st.TimeUntilExpiry.Milliseconds(),
					Expired:           st.Expired,
				})
			},
		}, logger)
		w.persistor, w.dog = persistor, dog
		s.checkouts[id] = w
	}
	s.mu.Unlock()

	s.emitCheckoutState(w.persistor)
	if !exists {
		s.async(func() { w.dog.Start(s.ctx) })
	}
}

func (s *Shell) unwatchCheckout(rawID string) {
	id := checkout.NormalizeSessionID(rawID)
	s.mu.Lock()
	w := s.checkouts[id]
	delete(s.checkouts, id)
	s.mu.Unlock()
	if w != nil {
		w.dog.Stop()
	}
}

// forgetCheckout drops w once its session has ended, unless a newer
// watch for the same id has replaced it.
func (s *Shell) forgetCheckout(id string, w *checkoutWatch) {
	s.mu.Lock()
	if s.checkouts[id] == w {
		delete(s.checkouts, id)
	}
	s.mu.Unlock()
}

func (s *Shell) refreshCheckout(rawID string) {
	w := s.watch(rawID)
	if w == nil {
		s.sendError(errs.NewError(errs.ErrCheckoutStateNotFound))
		return
	}
	s.async(func() { w.dog.Refresh(s.ctx) })
}

func (s *Shell) saveCheckout(p checkoutSavePayload) {
	if p.Patch.CurrentStep != nil && *p.Patch.CurrentStep < 1 {
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}
	w := s.watch(p.SessionID)
	persistor := checkout.New(s.storage, p.SessionID, s.clock, s.opts.CheckoutStateTTL, s.logger)
	if w != nil {
		persistor = w.persistor
	}
	persistor.StoreState(s.ctx, p.Patch)
	s.emitCheckoutState(persistor)
}

func (s *Shell) watch(rawID string) *checkoutWatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkouts[checkout.NormalizeSessionID(rawID)]
}

func (s *Shell) emitCheckoutState(p *checkout.Persistor) {
	state := p.GetStoredState(s.ctx)
	step := 1
	if state != nil && state.CurrentStep >= 1 {
		step = state.CurrentStep
	}
	s.emit(EventCheckoutState, checkoutStatePayload{SessionID: p.SessionID(), Step: step, State: state})
}

// async runs fn on its own goroutine unless the shell is closed. Close
// waits for it.
func (s *Shell) async(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Shell) emit(t EventType, payload any) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(Event{Type: t, Payload: payload, Timestamp: s.clock.Now().UnixMilli()})
}

func (s *Shell) sendError(e *errs.CustomError) {
	s.emit(EventError, errorPayload{Code: e.Code, Message: e.Message})
}

// ui turns component side effects into client events.
type ui struct{ s *Shell }

func (u ui) Notify(n domain.Notice) { u.s.emit(EventNotice, n) }
func (u ui) Navigate(path string)   { u.s.emit(EventNavigate, navigatePayload{Path: path}) }
func (u ui) Reload()                { u.s.emit(EventReload, nil) }

// cartService binds the merge orchestrator to the backend and the cart
// cache of the signed-in user.
type cartService struct{ s *Shell }

func (c cartService) MergeGuestCart(ctx context.Context, sessionID string) (domain.MergeResult, error) {
	return c.s.backend.MergeGuestCart(ctx, sessionID)
}

func (c cartService) InvalidateCart(ctx context.Context) {
	if uid := c.s.userID(); uid != "" && c.s.carts != nil {
		c.s.carts.Invalidate(ctx, uid)
	}
}

func (c cartService) RefetchCart(ctx context.Context) {
	uid := c.s.userID()
	if uid == "" {
		return
	}
	var (
		cart *domain.Cart
		err  error
	)
	if c.s.carts != nil {
		cart, err = c.s.carts.Refetch(ctx, uid, c.s.backend)
	} else {
		cart, err = c.s.backend.FetchCart(ctx)
	}
	if err != nil {
		c.s.logger.Warn().Err(err).Msg("refetch cart after merge")
		return
	}
	c.s.emit(EventCartUpdated, cart)
}
