// Package watchdog enforces the remote checkout session's expiry for one
// mount: it warns once when expiry is near and tears the checkout down once
// when the session expires or cannot be loaded.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"redbead/internal/domain"
	"redbead/internal/metrics"
	"redbead/internal/schedule"
)

const (
	DefaultWarningThreshold = 10 * time.Minute
	DefaultInterval         = time.Minute
	// FallbackPath is where the shopper is sent when no OnExpire is set.
	FallbackPath = "/cart"
)

var errSessionMissing = errors.New("checkout session missing")

type SessionFetcher interface {
	FetchCheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error)
}

type stateClearer interface {
	ClearStoredSession(ctx context.Context)
}

type notifier interface {
	Notify(n domain.Notice)
}

// Navigator performs a client-side route change.
type Navigator interface {
	Navigate(path string)
}

// Status is the derived view of the latest fetched session.
type Status struct {
	SessionID       string        `json:"sessionId"`
	ExpiresAt       time.Time     `json:"expiresAt"`
	TimeUntilExpiry time.Duration `json:"-"`
	Expired         bool          `json:"expired"`
}

type Config struct {
	SessionID        string
	WarningThreshold time.Duration
	Interval         time.Duration
	// OnExpire replaces the default navigation to FallbackPath.
	OnExpire func()
	// OnStatus observes every evaluation.
	OnStatus func(Status)
}

type Watchdog struct {
	fetcher   SessionFetcher
	clearer   stateClearer
	notifier  notifier
	navigator Navigator
	tasks     *schedule.Group
	cfg       Config
	logger    zerolog.Logger

	mu      sync.Mutex
	session *domain.CheckoutSession
	warned  bool
	handled bool
	started bool
	stopped bool
	ticker  *schedule.Task
}

func New(fetcher SessionFetcher, clearer stateClearer, n notifier, nav Navigator, tasks *schedule.Group, cfg Config, logger zerolog.Logger) *Watchdog {
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = DefaultWarningThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Watchdog{
		fetcher:   fetcher,
		clearer:   clearer,
		notifier:  n,
		navigator: nav,
		tasks:     tasks,
		cfg:       cfg,
		logger:    logger.With().Str("checkout_session", cfg.SessionID).Logger(),
	}
}

// Start loads the session, evaluates it, and re-evaluates every Interval.
// Later calls are no-ops.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.Refresh(ctx)

	tickCtx := context.WithoutCancel(ctx)
	task := w.tasks.Every(w.cfg.Interval, func() { w.Refresh(tickCtx) })

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		task.Cancel()
		return
	}
	w.ticker = task
	w.mu.Unlock()
}

// Refresh refetches the session and evaluates it immediately. It does
// nothing once the watchdog is stopped or has torn down.
func (w *Watchdog) Refresh(ctx context.Context) {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	session, err := w.fetcher.FetchCheckoutSession(ctx, w.cfg.SessionID)
	if err == nil && session == nil {
		err = errSessionMissing
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	if err != nil {
		first := !w.handled
		w.handled = true
		w.mu.Unlock()
		if first {
			w.logger.Warn().Err(err).Msg("checkout session fetch failed")
			metrics.CheckoutExpiries.WithLabelValues("fetch_error").Inc()
			w.teardown(ctx, "We couldn't verify your checkout session. Please return to your cart and try again.")
		}
		return
	}
	w.session = session
	w.mu.Unlock()

	w.evaluate(ctx)
}

func (w *Watchdog) evaluate(ctx context.Context) {
	now := w.tasks.Clock().Now()

	w.mu.Lock()
	if w.session == nil || w.stopped {
		w.mu.Unlock()
		return
	}
	remaining := w.session.ExpiresAt.Sub(now)
	status := Status{
		SessionID:       w.cfg.SessionID,
		ExpiresAt:       w.session.ExpiresAt,
		TimeUntilExpiry: remaining,
		Expired:         remaining <= 0,
	}
	warn := remaining > 0 && remaining <= w.cfg.WarningThreshold && !w.warned
	if warn {
		w.warned = true
	}
	expire := remaining <= 0 && !w.handled
	if expire {
		w.handled = true
	}
	w.mu.Unlock()

	if w.cfg.OnStatus != nil {
		w.cfg.OnStatus(status)
	}

	switch {
	case warn:
		minutes := int(math.Ceil(remaining.Minutes()))
		metrics.CheckoutWarnings.Inc()
		w.notify(domain.NoticeWarning, fmt.Sprintf("Your checkout session expires in %d %s.", minutes, plural(minutes, "minute")))
	case expire:
		w.logger.Info().Time("expires_at", status.ExpiresAt).Msg("checkout session expired")
		metrics.CheckoutExpiries.WithLabelValues("expired").Inc()
		w.teardown(ctx, "Your checkout session has expired. Please start checkout again.")
	}
}

// teardown runs once per watchdog and ends its periodic check.
func (w *Watchdog) teardown(ctx context.Context, msg string) {
	w.Stop()
	if w.clearer != nil {
		w.clearer.ClearStoredSession(ctx)
	}
	w.notify(domain.NoticeError, msg)
	if w.cfg.OnExpire != nil {
		w.cfg.OnExpire()
		return
	}
	if w.navigator != nil {
		w.navigator.Navigate(FallbackPath)
	}
}

// Stop cancels the periodic check. Fetches still in flight are ignored.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	w.stopped = true
	task := w.ticker
	w.ticker = nil
	w.mu.Unlock()
	task.Cancel()
}

// IsExpired reports whether the latest fetched session is past expiry.
func (w *Watchdog) IsExpired() bool {
	remaining, ok := w.TimeUntilExpiry()
	return ok && remaining <= 0
}

// TimeUntilExpiry is negative once expired; ok is false before the first
// successful fetch.
func (w *Watchdog) TimeUntilExpiry() (time.Duration, bool) {
	w.mu.Lock()
	session := w.session
	w.mu.Unlock()
	if session == nil {
		return 0, false
	}
	return session.ExpiresAt.Sub(w.tasks.Clock().Now()), true
}

func (w *Watchdog) notify(level domain.NoticeLevel, msg string) {
	if w.notifier != nil {
		w.notifier.Notify(domain.Notice{Level: level, Message: msg})
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
