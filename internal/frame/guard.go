package frame

import (
	"context"
	"fmt"
	"sync"
)

// Guard wraps a Source so it is opened at most once and released exactly once
// if it was ever opened. After Close, Capture and Open return ErrClosed; a
// released camera is never re-acquired.
type Guard struct {
	src Source

	mu       sync.Mutex
	opened   bool
	closed   bool
	opens    int
	releases int
}

// NewGuard wraps src.
func NewGuard(src Source) *Guard {
	return &Guard{src: src}
}

// Open acquires the underlying source.
func (g *Guard) Open(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}
	if g.opened {
		return nil
	}
	if err := g.src.Open(ctx); err != nil {
		return fmt.Errorf("opening frame source: %w", err)
	}
	g.opened = true
	g.opens++
	return nil
}

// Capture samples the underlying source.
func (g *Guard) Capture(ctx context.Context) (*Frame, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrClosed
	}
	if !g.opened {
		g.mu.Unlock()
		return nil, ErrNotOpen
	}
	g.mu.Unlock()

	return g.src.Capture(ctx)
}

// Close releases the underlying source if it was opened. Repeated calls are
// no-ops.
func (g *Guard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	if !g.opened {
		return nil
	}
	g.releases++
	if err := g.src.Close(); err != nil {
		return fmt.Errorf("releasing frame source: %w", err)
	}
	return nil
}

// Acquired reports whether the source is currently held.
func (g *Guard) Acquired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opened && !g.closed
}

// Counts returns how many times the underlying source was opened and released.
func (g *Guard) Counts() (opens, releases int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opens, g.releases
}
