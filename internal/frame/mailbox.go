package frame

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Mailbox is a Source fed by pushes, typically a browser uploading webcam
// stills. It holds only the latest frame: a newer Publish overwrites an
// unconsumed one, and each frame is handed out by Capture at most once.
type Mailbox struct {
	mu     sync.Mutex
	latest *Frame
	open   bool
	closed bool
	seq    uint64

	drops atomic.Uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Open marks the mailbox as acquired.
func (m *Mailbox) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.open = true
	return nil
}

// Publish stores data as the latest frame.
func (m *Mailbox) Publish(data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.latest != nil {
		m.drops.Add(1)
	}
	m.seq++
	m.latest = &Frame{
		Data:        data,
		ContentType: contentType,
		CapturedAt:  time.Now(),
		Seq:         m.seq,
	}
	return nil
}

// Capture takes the latest frame, or returns ErrNoFrame if nothing new was
// published since the last Capture.
func (m *Mailbox) Capture(ctx context.Context) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if !m.open {
		return nil, ErrNotOpen
	}
	if m.latest == nil {
		return nil, ErrNoFrame
	}
	f := m.latest
	m.latest = nil
	return f, nil
}

// Close drops any pending frame and rejects further publishes.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.open = false
	m.latest = nil
	return nil
}

// Drops returns how many published frames were overwritten before capture.
func (m *Mailbox) Drops() uint64 {
	return m.drops.Load()
}
