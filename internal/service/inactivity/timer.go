// Package inactivity signs an authenticated user out after a period without
// interaction, showing a countdown warning first.
package inactivity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"redbead/internal/metrics"
	"redbead/internal/schedule"
)

// WarningWindow is how long before sign-out the warning appears.
const WarningWindow = 2 * time.Minute

var activityEvents = map[string]struct{}{
	"mousedown":  {},
	"keydown":    {},
	"touchstart": {},
	"scroll":     {},
}

// IsActivityEvent reports whether event counts as user interaction.
func IsActivityEvent(event string) bool {
	_, ok := activityEvents[event]
	return ok
}

// Snapshot is what the warning UI renders.
type Snapshot struct {
	ShowWarning   bool          `json:"showWarning"`
	TimeRemaining time.Duration `json:"-"`
	Seconds       int           `json:"secondsRemaining"`
}

type signer interface {
	SignOut(ctx context.Context) error
}

// Reloader forces a full page reload.
type Reloader interface {
	Reload()
}

type Config struct {
	Timeout  time.Duration
	OnChange func(Snapshot)
}

// Timer owns the warning, countdown and inactivity timers of one mount.
// Every reset bumps a generation so callbacks of cancelled timers that
// already fired are dropped.
type Timer struct {
	signer   signer
	reloader Reloader
	tasks    *schedule.Group
	cfg      Config
	logger   zerolog.Logger

	mu         sync.Mutex
	ctx        context.Context
	gen        uint64
	running    bool
	warning    *schedule.Task
	countdown  *schedule.Task
	inactivity *schedule.Task
	snap       Snapshot
}

func New(s signer, r Reloader, tasks *schedule.Group, cfg Config, logger zerolog.Logger) *Timer {
	return &Timer{
		signer:   s,
		reloader: r,
		tasks:    tasks,
		cfg:      cfg,
		logger:   logger,
		ctx:      context.Background(),
		snap:     fullWindow(),
	}
}

func fullWindow() Snapshot {
	return Snapshot{TimeRemaining: WarningWindow, Seconds: int(WarningWindow / time.Second)}
}

// Start arms the timers. ctx carries the credentials used for sign-out.
func (t *Timer) Start(ctx context.Context) {
	t.mu.Lock()
	t.ctx = context.WithoutCancel(ctx)
	t.mu.Unlock()
	t.ResetTimer()
}

// Activity resets the timers for qualifying events on a running timer.
func (t *Timer) Activity(event string) bool {
	if !IsActivityEvent(event) {
		return false
	}
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()
	if !running {
		return false
	}
	t.ResetTimer()
	return true
}

// ResetTimer clears all three timers, hides the warning and restarts.
func (t *Timer) ResetTimer() {
	t.mu.Lock()
	t.cancelLocked()
	t.running = true
	t.snap = fullWindow()
	gen := t.gen

	warnAt := t.cfg.Timeout - WarningWindow
	if warnAt < 0 {
		warnAt = 0
	}
	t.warning = t.tasks.After(warnAt, func() { t.showWarning(gen) })
	t.inactivity = t.tasks.After(t.cfg.Timeout, func() { t.expire(gen) })
	snap := t.snap
	t.mu.Unlock()

	t.emit(snap)
}

// Stop clears every timer.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.cancelLocked()
	t.running = false
	t.mu.Unlock()
}

func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

func (t *Timer) showWarning(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.snap = Snapshot{ShowWarning: true, TimeRemaining: WarningWindow, Seconds: int(WarningWindow / time.Second)}
	t.countdown = t.tasks.Every(time.Second, func() { t.countDown(gen) })
	snap := t.snap
	t.mu.Unlock()

	t.emit(snap)
}

func (t *Timer) countDown(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	remaining := t.snap.TimeRemaining - time.Second
	if remaining < 0 {
		remaining = 0
	}
	t.snap.TimeRemaining = remaining
	t.snap.Seconds = int(remaining / time.Second)
	snap := t.snap
	t.mu.Unlock()

	t.emit(snap)
}

func (t *Timer) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.cancelLocked()
	t.running = false
	ctx := t.ctx
	t.mu.Unlock()

	metrics.InactivitySignOuts.Inc()
	t.logger.Info().Dur("timeout", t.cfg.Timeout).Msg("signing out inactive user")
	if err := t.signer.SignOut(ctx); err != nil {
		t.logger.Warn().Err(err).Msg("sign-out after inactivity failed")
	}
	if t.reloader != nil {
		t.reloader.Reload()
	}
}

func (t *Timer) cancelLocked() {
	t.gen++
	t.warning.Cancel()
	t.countdown.Cancel()
	t.inactivity.Cancel()
	t.warning, t.countdown, t.inactivity = nil, nil, nil
}

func (t *Timer) emit(s Snapshot) {
	if t.cfg.OnChange != nil {
		t.cfg.OnChange(s)
	}
}
