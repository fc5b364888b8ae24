package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func blockUntil(t *testing.T, fc *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, n))
}

func TestAfter_FiresOnce(t *testing.T) {
	fc := clockwork.NewFakeClock()
	g := NewGroup(fc)
	var fired atomic.Int32

	g.After(time.Second, func() { fired.Add(1) })
	blockUntil(t, fc, 1)

	fc.Advance(999 * time.Millisecond)
	require.Never(t, func() bool { return fired.Load() > 0 }, 50*time.Millisecond, tick)

	fc.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return g.Pending() == 0 }, waitFor, tick)
}

func TestAfter_CancelPreventsRun(t *testing.T) {
	fc := clockwork.NewFakeClock()
	g := NewGroup(fc)
	var fired atomic.Bool

	task := g.After(time.Second, func() { fired.Store(true) })
	task.Cancel()
	task.Cancel()

	fc.Advance(2 * time.Second)
	require.Never(t, fired.Load, 50*time.Millisecond, tick)
	assert.Equal(t, 0, g.Pending())
}

func TestEvery_TicksUntilCancelled(t *testing.T) {
	fc := clockwork.NewFakeClock()
	g := NewGroup(fc)
	var runs atomic.Int32

	task := g.Every(time.Second, func() { runs.Add(1) })
	blockUntil(t, fc, 1)

	fc.Advance(time.Second)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, waitFor, tick)
	fc.Advance(time.Second)
	require.Eventually(t, func() bool { return runs.Load() == 2 }, waitFor, tick)

	task.Cancel()
	fc.Advance(time.Second)
	require.Never(t, func() bool { return runs.Load() > 2 }, 50*time.Millisecond, tick)
}

func TestClose_CancelsPendingAndFutureTasks(t *testing.T) {
	fc := clockwork.NewFakeClock()
	g := NewGroup(fc)
	var fired atomic.Int32

	g.After(time.Second, func() { fired.Add(1) })
	g.Every(time.Second, func() { fired.Add(1) })
	require.Equal(t, 2, g.Pending())

	g.Close()
	assert.Equal(t, 0, g.Pending())

	g.After(time.Second, func() { fired.Add(1) })
	assert.Equal(t, 0, g.Pending())

	fc.Advance(5 * time.Second)
	require.Never(t, func() bool { return fired.Load() > 0 }, 50*time.Millisecond, tick)
}

func TestTask_NilCancelIsSafe(t *testing.T) {
	var task *Task
	assert.NotPanics(t, task.Cancel)
}
