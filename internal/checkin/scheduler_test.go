package checkin

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTicker is driven by hand. tick blocks until the scheduler loop takes
// the tick, or reports false once the loop has exited.
type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time)}
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

func (f *fakeTicker) factory() TickerFunc {
	return func(time.Duration) Ticker { return f }
}

func (f *fakeTicker) tick() bool {
	select {
	case f.ch <- time.Now():
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

func TestSchedulerAtMostOneInFlight(t *testing.T) {
	ft := newFakeTicker()
	var skips atomic.Int64
	s := NewScheduler(WithTicker(ft.factory()), WithSkipHook(func() { skips.Add(1) }))

	release := make(chan struct{})
	entered := make(chan struct{}, 10)
	var running, maxRunning atomic.Int64
	require.NoError(t, s.Start(context.Background(), time.Second, func(context.Context) {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		entered <- struct{}{}
		<-release
		running.Add(-1)
	}))

	require.True(t, ft.tick())
	<-entered
	for range 3 {
		require.True(t, ft.tick())
	}
	close(release)

	s.Stop()
	s.Wait()

	assert.Equal(t, int64(1), maxRunning.Load())
	assert.Equal(t, int64(1), s.Fired())
	assert.Equal(t, int64(3), s.Skipped())
	assert.Equal(t, int64(3), skips.Load())
	assert.True(t, ft.stopped.Load())
}

func TestSchedulerTickAfterCompletion(t *testing.T) {
	ft := newFakeTicker()
	s := NewScheduler(WithTicker(ft.factory()))

	var calls atomic.Int64
	require.NoError(t, s.Start(context.Background(), time.Second, func(context.Context) { calls.Add(1) }))

	for i := range 3 {
		require.True(t, ft.tick())
		require.Eventually(t, func() bool { return calls.Load() == int64(i+1) && !s.InFlight() },
			time.Second, time.Millisecond)
	}

	s.Stop()
	s.Wait()
	assert.Equal(t, int64(0), s.Skipped())
}

func TestSchedulerStopIdempotent(t *testing.T) {
	ft := newFakeTicker()
	s := NewScheduler(WithTicker(ft.factory()))

	s.Stop()
	s.Stop()
	assert.ErrorIs(t, s.Start(context.Background(), time.Second, func(context.Context) {}), errSchedulerReuse)
	s.Wait()
}

func TestSchedulerNoTicksAfterStop(t *testing.T) {
	ft := newFakeTicker()
	s := NewScheduler(WithTicker(ft.factory()))

	var calls atomic.Int64
	require.NoError(t, s.Start(context.Background(), time.Second, func(context.Context) { calls.Add(1) }))
	s.Stop()
	s.Wait()

	assert.False(t, ft.tick())
	assert.Equal(t, int64(0), calls.Load())
	assert.ErrorIs(t, s.Start(context.Background(), time.Second, func(context.Context) {}), errSchedulerReuse)
}

func TestSchedulerStopFromTick(t *testing.T) {
	ft := newFakeTicker()
	s := NewScheduler(WithTicker(ft.factory()))

	require.NoError(t, s.Start(context.Background(), time.Second, func(context.Context) { s.Stop() }))
	require.True(t, ft.tick())
	s.Wait()

	assert.False(t, ft.tick())
}

func TestSchedulerContextCancelStops(t *testing.T) {
	ft := newFakeTicker()
	s := NewScheduler(WithTicker(ft.factory()))

	ctx, cancel := context.WithCancel(context.Background())
	var tickCtxErr atomic.Value
	require.NoError(t, s.Start(ctx, time.Second, func(tc context.Context) {
		cancel()
		time.Sleep(10 * time.Millisecond)
		tickCtxErr.Store(tc.Err() == nil)
	}))

	require.True(t, ft.tick())
	s.Wait()

	// Stopping never cancels an attempt under way.
	assert.Equal(t, true, tickCtxErr.Load())
	assert.False(t, ft.tick())
}

func TestSchedulerRecoversPanic(t *testing.T) {
	ft := newFakeTicker()
	s := NewScheduler(WithTicker(ft.factory()))

	var calls atomic.Int64
	require.NoError(t, s.Start(context.Background(), time.Second, func(context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	}))

	require.True(t, ft.tick())
	require.Eventually(t, func() bool { return calls.Load() == 1 && !s.InFlight() }, time.Second, time.Millisecond)
	require.True(t, ft.tick())
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)

	s.Stop()
	s.Wait()
}

func TestSchedulerRealTicker(t *testing.T) {
	s := NewScheduler()

	var calls atomic.Int64
	require.NoError(t, s.Start(context.Background(), 5*time.Millisecond, func(context.Context) { calls.Add(1) }))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)

	s.Stop()
	s.Wait()
}
