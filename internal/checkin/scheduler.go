package checkin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the capture cadence.
const DefaultInterval = 3 * time.Second

// Ticker abstracts time.Ticker so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker for an interval.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Scheduler invokes a tick function at a fixed cadence with at most one
// invocation running at a time. A tick that fires while the previous one is
// still running is dropped, not queued.
type Scheduler struct {
	newTicker TickerFunc
	logger    zerolog.Logger
	onSkip    func()

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}

	inFlight atomic.Bool
	skipped  atomic.Int64
	ticks    atomic.Int64
	wg       sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTicker overrides the ticker factory.
func WithTicker(fn TickerFunc) SchedulerOption {
	return func(s *Scheduler) { s.newTicker = fn }
}

// WithSchedulerLogger sets the logger used for recovered panics.
func WithSchedulerLogger(l zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithSkipHook is called every time a tick is dropped.
func WithSkipHook(fn func()) SchedulerOption {
	return func(s *Scheduler) { s.onSkip = fn }
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		newTicker: NewRealTicker,
		logger:    zerolog.Nop(),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// errSchedulerReuse is returned by Start on a scheduler that already ran.
var errSchedulerReuse = errors.New("scheduler already started or stopped")

// Start begins ticking. onTick receives a context that is not cancelled by
// Stop: an attempt already under way is allowed to finish and its caller
// decides whether the result still applies. Cancelling ctx stops the
// scheduler like Stop does.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration, onTick func(context.Context)) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return errSchedulerReuse
	}
	s.started = true
	s.mu.Unlock()

	t := s.newTicker(interval)
	tickCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				s.Stop()
				return
			case <-t.C():
				// A tick and Stop may become ready together; Stop wins.
				select {
				case <-s.stopCh:
					return
				default:
				}
				s.fire(tickCtx, onTick)
			}
		}
	}()
	return nil
}

func (s *Scheduler) fire(ctx context.Context, onTick func(context.Context)) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		if s.onSkip != nil {
			s.onSkip()
		}
		return
	}
	s.ticks.Add(1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Msg("capture tick panicked")
			}
		}()
		onTick(ctx)
	}()
}

// Stop prevents further ticks. It does not wait for a running tick and is
// safe to call repeatedly, before Start, and from inside onTick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
}

// Wait blocks until the ticking loop and any running tick have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// InFlight reports whether a tick is running.
func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

// Skipped returns the number of dropped ticks.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// Fired returns the number of ticks that ran.
func (s *Scheduler) Fired() int64 {
	return s.ticks.Load()
}
