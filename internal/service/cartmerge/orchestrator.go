// Package cartmerge reconciles a guest cart into the signed-in customer's
// cart, at most once per session mount.
package cartmerge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"redbead/internal/domain"
	"redbead/internal/metrics"
	"redbead/internal/schedule"
)

var (
	ErrMergeInProgress  = errors.New("merge already in progress")
	ErrNoGuestSession   = errors.New("no guest session")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// State is the orchestrator's position in the merge lifecycle.
type State int

const (
	Idle State = iota
	Checking
	NoSession
	Merging
	Merged
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case NoSession:
		return "no_session"
	case Merging:
		return "merging"
	case Merged:
		return "merged"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuthSnapshot is what the orchestrator needs to know about the user.
type AuthSnapshot struct {
	Loading   bool
	ProfileID string
}

type guestSessions interface {
	GuestSessionID(ctx context.Context) (string, bool)
	ClearGuestSession(ctx context.Context)
}

// Carts is the cart side of the merge: the remote merge call plus the
// cached cart it has to invalidate and refetch.
type Carts interface {
	MergeGuestCart(ctx context.Context, sessionID string) (domain.MergeResult, error)
	InvalidateCart(ctx context.Context)
	RefetchCart(ctx context.Context)
}

type notifier interface {
	Notify(n domain.Notice)
}

// Config tunes an Orchestrator.
type Config struct {
	// RefetchDelay separates invalidation from the forced cart refetch so
	// the backend can finish propagating the merge.
	RefetchDelay time.Duration
	// OnStateChange, when set, observes every transition.
	OnStateChange func(State)
}

// Orchestrator runs the merge state machine for one mount.
type Orchestrator struct {
	guest    guestSessions
	carts    Carts
	notifier notifier
	tasks    *schedule.Group
	cfg      Config
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	processed bool
	merging   bool
	auth      AuthSnapshot
}

func New(guest guestSessions, carts Carts, n notifier, tasks *schedule.Group, cfg Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		guest:    guest,
		carts:    carts,
		notifier: n,
		tasks:    tasks,
		cfg:      cfg,
		logger:   logger,
	}
}

// Check is safe to call on every auth change. It acts once the profile has
// loaded, and only the first acting call does anything.
func (o *Orchestrator) Check(ctx context.Context, auth AuthSnapshot) {
	o.mu.Lock()
	if !auth.Loading {
		o.auth = auth
	}
	if o.processed {
		o.mu.Unlock()
		return
	}
	if o.merging {
		// A manual merge already owns the guest session and the state.
		if !auth.Loading && auth.ProfileID != "" {
			o.processed = true
		}
		o.mu.Unlock()
		return
	}
	if auth.Loading || auth.ProfileID == "" {
		changed := o.setStateLocked(Checking)
		o.mu.Unlock()
		o.emit(changed, Checking)
		return
	}

	// The flag is set before any remote call so a concurrent Check bails out.
	o.processed = true
	sessionID, ok := o.guest.GuestSessionID(ctx)
	if !ok {
		changed := o.setStateLocked(NoSession)
		o.mu.Unlock()
		o.emit(changed, NoSession)
		metrics.CartMerges.WithLabelValues("auto", "skipped").Inc()
		return
	}

	o.merging = true
	changed := o.setStateLocked(Merging)
	// Cleared before the merge resolves: a reload mid-flight must not merge
	// the same guest cart twice, even though a failed merge then cannot be
	// retried with this id.
	o.guest.ClearGuestSession(ctx)
	o.mu.Unlock()
	o.emit(changed, Merging)

	_ = o.merge(ctx, sessionID, auth.ProfileID, false)
}

// ManualMerge is the user-triggered merge. It reports problems to the
// shopper and never calls the backend without a guest session and a user.
func (o *Orchestrator) ManualMerge(ctx context.Context, auth AuthSnapshot) error {
	o.mu.Lock()
	if !auth.Loading {
		o.auth = auth
	}
	if o.merging {
		o.mu.Unlock()
		return ErrMergeInProgress
	}
	sessionID, ok := o.guest.GuestSessionID(ctx)
	if !ok {
		o.mu.Unlock()
		o.notify(domain.NoticeError, "No guest session found.")
		metrics.CartMerges.WithLabelValues("manual", "skipped").Inc()
		return ErrNoGuestSession
	}
	if auth.ProfileID == "" {
		o.mu.Unlock()
		o.notify(domain.NoticeError, "Please sign in to merge your cart.")
		metrics.CartMerges.WithLabelValues("manual", "skipped").Inc()
		return ErrNotAuthenticated
	}

	o.merging = true
	changed := o.setStateLocked(Merging)
	o.guest.ClearGuestSession(ctx)
	o.mu.Unlock()
	o.emit(changed, Merging)

	return o.merge(ctx, sessionID, auth.ProfileID, true)
}

func (o *Orchestrator) merge(ctx context.Context, sessionID, profileID string, manual bool) error {
	trigger := "auto"
	if manual {
		trigger = "manual"
	}
	logger := o.logger.With().Str("trigger", trigger).Str("user_id", profileID).Logger()

	res, err := o.carts.MergeGuestCart(ctx, sessionID)

	o.mu.Lock()
	o.merging = false
	next := Merged
	if err != nil {
		next = Failed
	}
	changed := o.setStateLocked(next)
	o.mu.Unlock()

	if err != nil {
		logger.Error().Err(err).Msg("guest cart merge failed")
		metrics.CartMerges.WithLabelValues(trigger, "failed").Inc()
		o.notify(domain.NoticeError, "We couldn't merge your guest cart. Please try again.")
		o.emit(changed, next)
		return fmt.Errorf("merge guest cart: %w", err)
	}

	logger.Info().Int("merged_items", res.MergedItemsCount).Msg("guest cart merged")
	o.carts.InvalidateCart(ctx)
	refetchCtx := context.WithoutCancel(ctx)
	o.tasks.After(o.cfg.RefetchDelay, func() {
		o.carts.RefetchCart(refetchCtx)
	})

	switch {
	case res.MergedItemsCount > 0:
		metrics.CartMerges.WithLabelValues(trigger, "merged").Inc()
		o.notify(domain.NoticeSuccess, itemsMessage(res.MergedItemsCount))
	case manual:
		metrics.CartMerges.WithLabelValues(trigger, "empty").Inc()
		o.notify(domain.NoticeInfo, "Nothing to merge: your guest cart was empty.")
	default:
		metrics.CartMerges.WithLabelValues(trigger, "empty").Inc()
	}
	o.emit(changed, next)
	return nil
}

func itemsMessage(n int) string {
	if n == 1 {
		return "1 item from your guest cart was added to your cart."
	}
	return fmt.Sprintf("%d items from your guest cart were added to your cart.", n)
}

// HasGuestSession reads the guest session store afresh.
func (o *Orchestrator) HasGuestSession(ctx context.Context) bool {
	_, ok := o.guest.GuestSessionID(ctx)
	return ok
}

// IsAuthenticated reports whether the last loaded snapshot carried a
// profile id.
func (o *Orchestrator) IsAuthenticated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.auth.ProfileID != ""
}

// IsMerging reports whether a merge call is in flight.
func (o *Orchestrator) IsMerging() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.merging
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setStateLocked(s State) bool {
	if o.state == s {
		return false
	}
	o.state = s
	return true
}

func (o *Orchestrator) emit(changed bool, s State) {
	if changed && o.cfg.OnStateChange != nil {
		o.cfg.OnStateChange(s)
	}
}

func (o *Orchestrator) notify(level domain.NoticeLevel, msg string) {
	if o.notifier != nil {
		o.notifier.Notify(domain.Notice{Level: level, Message: msg})
	}
}
