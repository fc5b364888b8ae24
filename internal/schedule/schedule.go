// Package schedule turns timers into owned, cancellable tasks.
//
// Every timer a session component starts goes through a Group; closing the
// Group cancels whatever is still pending, so teardown does not depend on
// each component remembering its handles.
package schedule

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Task is a handle on a scheduled callback.
type Task struct {
	once   sync.Once
	cancel func()
}

// Cancel stops the task. Safe to call more than once and on a nil Task.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
}

// Group schedules callbacks on a clock and cancels them all on Close.
type Group struct {
	clock clockwork.Clock

	mu     sync.Mutex
	tasks  map[*Task]struct{}
	closed bool
}

func NewGroup(clock clockwork.Clock) *Group {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Group{clock: clock, tasks: make(map[*Task]struct{})}
}

// Clock returns the clock the group schedules on.
func (g *Group) Clock() clockwork.Clock {
	return g.clock
}

// After runs fn once after d unless cancelled first.
func (g *Group) After(d time.Duration, fn func()) *Task {
	t := &Task{}
	var timer clockwork.Timer
	var mu sync.Mutex
	t.cancel = func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		g.forget(t)
	}
	if !g.track(t) {
		return t
	}
	mu.Lock()
	timer = g.clock.AfterFunc(d, func() {
		if !g.live(t) {
			return
		}
		g.forget(t)
		fn()
	})
	mu.Unlock()
	return t
}

// Every runs fn every d until cancelled. The first run happens after d.
func (g *Group) Every(d time.Duration, fn func()) *Task {
	t := &Task{}
	stop := make(chan struct{})
	t.cancel = func() {
		close(stop)
		g.forget(t)
	}
	if !g.track(t) {
		return t
	}
	ticker := g.clock.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()
	return t
}

// Close cancels every pending task. Tasks scheduled afterwards are
// cancelled immediately.
func (g *Group) Close() {
	g.mu.Lock()
	g.closed = true
	pending := make([]*Task, 0, len(g.tasks))
	for t := range g.tasks {
		pending = append(pending, t)
	}
	g.mu.Unlock()

	for _, t := range pending {
		t.Cancel()
	}
}

// Pending reports the number of live tasks.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}

func (g *Group) track(t *Task) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		t.Cancel()
		return false
	}
	g.tasks[t] = struct{}{}
	g.mu.Unlock()
	return true
}

func (g *Group) live(t *Task) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.tasks[t]
	return ok
}

func (g *Group) forget(t *Task) {
	g.mu.Lock()
	delete(g.tasks, t)
	g.mu.Unlock()
}
