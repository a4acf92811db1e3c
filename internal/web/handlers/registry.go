package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-checkin/internal/checkin"
	"github.com/kozaktomas/face-checkin/internal/frame"
)

// DefaultRetention is how long a closed session stays readable.
const DefaultRetention = 10 * time.Minute

// kioskSession pairs a controller with the mailbox its frames arrive in.
type kioskSession struct {
	ctrl      *checkin.Controller
	mailbox   *frame.Mailbox
	createdAt time.Time
	closedAt  time.Time
}

// closed reports whether the controller has torn down.
func (s *kioskSession) closed() bool {
	select {
	case <-s.ctrl.Done():
		return true
	default:
		return false
	}
}

// SessionManager keeps the kiosk sessions of one server. It owns the
// context sessions run under, so a session outlives the request that
// created it and ends when the manager closes.
type SessionManager struct {
	sessions  map[string]*kioskSession
	mu        sync.RWMutex
	retention time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSessionManager creates a session manager. retention <= 0 uses
// DefaultRetention.
func NewSessionManager(retention time.Duration) *SessionManager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		sessions:  make(map[string]*kioskSession),
		retention: retention,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context returns the context sessions should be started with.
func (m *SessionManager) Context() context.Context {
	return m.ctx
}

// Add registers a session and prunes expired ones.
func (m *SessionManager) Add(sess *kioskSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	sess.createdAt = m.now()
	m.sessions[sess.ctrl.ID()] = sess
}

// Get retrieves a session by ID.
func (m *SessionManager) Get(id string) *kioskSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// List returns snapshots of all known sessions.
func (m *SessionManager) List() []checkin.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]checkin.Snapshot, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.ctrl.Snapshot())
	}
	return out
}

// Len returns the number of registered sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune drops closed sessions older than the retention window.
func (m *SessionManager) Prune() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
}

func (m *SessionManager) pruneLocked() {
	now := m.now()
	for id, sess := range m.sessions {
		if !sess.closed() {
			continue
		}
		if sess.closedAt.IsZero() {
			sess.closedAt = now
			continue
		}
		if now.Sub(sess.closedAt) >= m.retention {
			delete(m.sessions, id)
		}
	}
}

// Close stops every session and waits for their capture loops to return.
func (m *SessionManager) Close() {
	m.cancel()

	m.mu.RLock()
	sessions := make([]*kioskSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	for _, sess := range sessions {
		sess.ctrl.Stop()
	}
	for _, sess := range sessions {
		sess.ctrl.Wait()
	}
}
