package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/face-checkin/internal/frame"
	"github.com/kozaktomas/face-checkin/internal/log"
	"github.com/kozaktomas/face-checkin/internal/metrics"
)

// Options configures a Controller. Source and Verifier are required.
type Options struct {
	// ID identifies the session; a UUID is generated when empty.
	ID       string
	Mode     Mode
	Source   frame.Source
	Verifier Verifier
	// Checker runs the context pre-check. Optional.
	Checker ContextChecker
	// Ender ends a batch session on the server. Optional.
	Ender SessionEnder
	// Journal stores confirmations. Optional.
	Journal    Journal
	Classifier *Classifier
	Interval   time.Duration
	// CallTimeout bounds a single verification call. Zero leaves the
	// deadline to the transport.
	CallTimeout time.Duration
	Ticker      TickerFunc
	Logger      *zerolog.Logger
	Now         func() time.Time
}

// Snapshot is a read-only view of a session for rendering.
type Snapshot struct {
	ID        string    `json:"id"`
	ContextID string    `json:"context_id"`
	Mode      Mode      `json:"mode"`
	State     State     `json:"state"`
	Matched   []string  `json:"matched"`
	LastMatch *Match    `json:"last_match,omitempty"`
	Category  Category  `json:"category,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Attempts  int64     `json:"attempts"`
	Skipped   int64     `json:"skipped_ticks"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Controller runs one capture session: it owns the frame source for the
// session lifetime, paces attempts with a Scheduler, feeds results through
// the Reducer, and publishes state and events.
type Controller struct {
	id       string
	mode     Mode
	opts     Options
	reducer  *Reducer
	source   *frame.Guard
	sched    *Scheduler
	logger   zerolog.Logger
	now      func() time.Time
	interval time.Duration

	mu        sync.RWMutex
	machine   Machine
	contextID string
	started   bool
	closed    bool
	active    bool
	lastMatch *Match
	attempts  int64
	startedAt time.Time
	updatedAt time.Time

	events broadcaster
	done   chan struct{}
}

// New creates a controller. It does not touch the frame source until Start.
func New(opts Options) (*Controller, error) {
	if opts.Source == nil {
		return nil, errors.New("frame source is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if opts.Mode != ModeSingle && opts.Mode != ModeBatch {
		return nil, fmt.Errorf("unknown check-in mode %q", opts.Mode)
	}
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := log.WithComponent("checkin")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("session", opts.ID).Str("mode", string(opts.Mode)).Logger()

	schedOpts := []SchedulerOption{
		WithSchedulerLogger(logger),
		WithSkipHook(func() { metrics.SkippedTicksTotal.Inc() }),
	}
	if opts.Ticker != nil {
		schedOpts = append(schedOpts, WithTicker(opts.Ticker))
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Controller{
		id:       opts.ID,
		mode:     opts.Mode,
		opts:     opts,
		reducer:  NewReducer(opts.Classifier),
		source:   frame.NewGuard(opts.Source),
		sched:    NewScheduler(schedOpts...),
		logger:   logger,
		now:      opts.Now,
		interval: interval,
		machine:  NewMachine(opts.Mode),
		done:     make(chan struct{}),
	}, nil
}

// NewSelfCheckIn creates a single-subject controller.
func NewSelfCheckIn(opts Options) (*Controller, error) {
	opts.Mode = ModeSingle
	return New(opts)
}

// NewBatchScan creates a batch controller.
func NewBatchScan(opts Options) (*Controller, error) {
	opts.Mode = ModeBatch
	return New(opts)
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Mode returns the session variant.
func (c *Controller) Mode() Mode { return c.mode }

// Start validates contextID, acquires the camera and begins scanning.
// Any failure leaves the session in fatal-error and is returned as *Error.
// Cancelling ctx tears the session down like Stop.
func (c *Controller) Start(ctx context.Context, contextID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.contextID = contextID
	c.startedAt = c.now()
	c.publishLocked()
	c.mu.Unlock()

	if contextID == "" {
		return c.failStart(CategoryInvalidContext, "No event selected.", ErrInvalidContext)
	}

	if c.opts.Checker != nil {
		if err := c.opts.Checker.CheckContext(ctx, contextID); err != nil {
			cat := c.reducer.Classifier.Classify(err)
			if !cat.Fatal() {
				// The pre-check has no retry; any failure ends the session.
				cat = CategoryInvalidContext
			}
			return c.failStart(cat, err.Error(), err)
		}
	}

	if err := c.source.Open(ctx); err != nil {
		return c.failStart(CategoryCameraUnavailable, "Camera is not available: "+err.Error(), err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.machine = c.machine.Begin()
	c.active = true
	metrics.ActiveSessions.WithLabelValues(string(c.mode)).Inc()
	c.publishLocked()
	c.mu.Unlock()

	if err := c.sched.Start(ctx, c.interval, c.tick); err != nil {
		c.Stop()
		return fmt.Errorf("starting scheduler: %w", err)
	}
	go c.watch(ctx)

	c.logger.Info().Str("context", contextID).Dur("interval", c.interval).Msg("scanning started")
	return nil
}

// watch tears the session down when the owner cancels ctx.
func (c *Controller) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.Stop()
	case <-c.done:
	}
}

func (c *Controller) failStart(cat Category, reason string, cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSessionClosed
	}
	c.machine = c.machine.Fail(cat, reason)
	c.publishLocked()
	c.events.send(Event{Type: EventFatal, State: c.machine.State, Category: cat, Reason: reason, At: c.now()})
	metrics.FatalTotal.WithLabelValues(string(cat)).Inc()
	c.logger.Error().Err(cause).Str("category", string(cat)).Msg("session could not start")
	c.teardownLocked()
	return NewError(cat, reason, cause)
}

// tick runs one capture attempt. The scheduler guarantees ticks never overlap.
func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.machine.State != StateScanning {
		c.mu.Unlock()
		return
	}
	c.machine = c.machine.Processing()
	c.publishLocked()
	c.mu.Unlock()

	f, err := c.source.Capture(ctx)
	if errors.Is(err, frame.ErrNoFrame) {
		c.mu.Lock()
		if !c.closed && c.machine.State == StateProcessing {
			c.machine = c.machine.Resume()
			c.publishLocked()
		}
		c.mu.Unlock()
		return
	}

	// A Stop during a slow capture must not reach the verifier.
	c.mu.RLock()
	stale := c.closed || c.machine.State != StateProcessing
	c.mu.RUnlock()
	if stale {
		c.logger.Debug().Msg("discarding frame captured for stopped session")
		return
	}

	var res Result
	if err != nil {
		res = Result{Err: NewError(CategoryCameraUnavailable, "Camera is not available: "+err.Error(), err)}
	} else {
		res = c.verify(ctx, f)
	}
	c.apply(ctx, res)
}

func (c *Controller) verify(ctx context.Context, f *frame.Frame) Result {
	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := c.opts.Verifier.Verify(ctx, c.contextIDValue(), f)
	metrics.VerifyDuration.WithLabelValues(string(c.mode)).Observe(time.Since(start).Seconds())
	return Result{Outcome: outcome, Err: err}
}

func (c *Controller) contextIDValue() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.contextID
}

// apply reduces a result into the session. Results arriving after the
// session stopped are discarded.
func (c *Controller) apply(ctx context.Context, res Result) {
	c.mu.Lock()
	if c.closed || c.machine.State != StateProcessing {
		c.mu.Unlock()
		c.logger.Debug().Msg("discarding verification result for stopped session")
		return
	}

	c.attempts++
	next, effects := c.reducer.Reduce(c.machine, res)
	c.machine = next
	metrics.AttemptsTotal.WithLabelValues(string(c.mode), outcomeLabel(res, next)).Inc()
	c.publishLocked()

	var confirmed []Confirmation
	stop := false
	for _, e := range effects {
		switch e.Kind {
		case EffectConfirm:
			m := e.Match
			c.lastMatch = &m
			if missed := c.events.send(Event{Type: EventConfirmed, State: next.State, Match: &m, At: c.now()}); missed > 0 {
				c.logger.Warn().Str("subject", m.Subject).Int("listeners", missed).Msg("confirmation not delivered to slow listener")
			}
			metrics.ConfirmationsTotal.WithLabelValues(string(c.mode)).Inc()
			c.logger.Info().Str("subject", m.Subject).Bool("already", m.Already).Msg("subject confirmed")
			if !m.Already {
				confirmed = append(confirmed, Confirmation{
					SessionID:  c.id,
					ContextID:  c.contextID,
					Mode:       c.mode,
					Match:      m,
					RecordedAt: c.now(),
				})
			}
		case EffectFatal:
			c.events.send(Event{Type: EventFatal, State: next.State, Category: e.Category, Reason: e.Reason, At: c.now()})
			metrics.FatalTotal.WithLabelValues(string(e.Category)).Inc()
			c.logger.Error().Err(e.Err).Str("category", string(e.Category)).Msg("verification failed fatally")
		case EffectLog:
			if e.Category == CategoryRecognitionMiss {
				c.logger.Debug().Str("reason", e.Reason).Msg("face not recognized, continuing scan")
			} else {
				c.logger.Warn().Err(e.Err).Str("category", string(e.Category)).Msg("verification attempt failed, retrying next tick")
			}
		case EffectStop:
			stop = true
		}
	}

	if c.machine.State == StateRecoverableError {
		c.machine = c.machine.Resume()
		c.publishLocked()
	}
	if stop {
		c.teardownLocked()
	}
	c.mu.Unlock()

	c.record(ctx, confirmed)
}

func (c *Controller) record(ctx context.Context, confirmed []Confirmation) {
	if c.opts.Journal == nil {
		return
	}
	for _, conf := range confirmed {
		if err := c.opts.Journal.Record(ctx, conf); err != nil {
			c.logger.Warn().Err(err).Str("subject", conf.Match.Subject).Msg("failed to journal confirmation")
		}
	}
}

func outcomeLabel(res Result, next Machine) string {
	if res.Err != nil {
		return string(next.Category)
	}
	if res.Outcome == nil {
		return "malformed"
	}
	return string(res.Outcome.Kind)
}

// publishLocked emits the current state. Callers hold c.mu.
func (c *Controller) publishLocked() {
	c.updatedAt = c.now()
	c.events.send(Event{
		Type:     EventState,
		State:    c.machine.State,
		Category: c.machine.Category,
		Reason:   c.machine.Reason,
		At:       c.updatedAt,
	})
}

// teardownLocked stops ticking, releases the camera and closes event
// listeners. Callers hold c.mu.
func (c *Controller) teardownLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.sched.Stop()
	if err := c.source.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to release frame source")
	}
	if c.active {
		c.active = false
		metrics.ActiveSessions.WithLabelValues(string(c.mode)).Dec()
	}
	c.events.close()
	close(c.done)
	c.logger.Info().Str("state", string(c.machine.State)).Msg("session closed")
}

// Stop ends the session from any state. A running verification call is not
// cancelled; its result is discarded. Safe to call repeatedly and before
// Start.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if !c.machine.State.Terminal() {
		c.machine = c.machine.stop()
		c.publishLocked()
	}
	c.teardownLocked()
}

// EndSession stops scanning and then asks the server to close the batch
// session. Only ever called on explicit user action.
func (c *Controller) EndSession(ctx context.Context) error {
	if c.mode != ModeBatch {
		return ErrWrongMode
	}
	if c.opts.Ender == nil {
		return errors.New("no session ender configured")
	}

	c.Stop()

	contextID := c.contextIDValue()
	if contextID == "" {
		return ErrInvalidContext
	}
	if err := c.opts.Ender.EndSession(ctx, contextID); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	c.logger.Info().Str("context", contextID).Msg("session ended on server")
	return nil
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var last *Match
	if c.lastMatch != nil {
		m := *c.lastMatch
		last = &m
	}
	return Snapshot{
		ID:        c.id,
		ContextID: c.contextID,
		Mode:      c.mode,
		State:     c.machine.State,
		Matched:   c.machine.Matched.List(),
		LastMatch: last,
		Category:  c.machine.Category,
		Reason:    c.machine.Reason,
		Attempts:  c.attempts,
		Skipped:   c.sched.Skipped(),
		StartedAt: c.startedAt,
		UpdatedAt: c.updatedAt,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.machine.State
}

// Matched returns the confirmed subjects.
func (c *Controller) Matched() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.machine.Matched.List()
}

// Subscribe registers an event listener. The channel is closed when the
// session closes or on Unsubscribe.
func (c *Controller) Subscribe() chan Event {
	return c.events.add()
}

// Unsubscribe removes a listener.
func (c *Controller) Unsubscribe(ch chan Event) {
	c.events.remove(ch)
}

// Done is closed once the session has torn down.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the scheduler and any in-flight attempt have returned.
func (c *Controller) Wait() {
	c.sched.Wait()
}
