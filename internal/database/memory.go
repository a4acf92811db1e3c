package database

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-checkin/internal/checkin"
)

type memoryKey struct {
	session string
	subject string
}

// MemoryStore keeps confirmations for the lifetime of the process. Used when
// no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records []StoredConfirmation
	seen    map[memoryKey]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[memoryKey]struct{})}
}

// Record appends c unless the subject is already recorded for the session.
func (m *MemoryStore) Record(ctx context.Context, c checkin.Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{session: c.SessionID, subject: c.Match.Subject}
	if _, ok := m.seen[key]; ok {
		return nil
	}
	m.seen[key] = struct{}{}

	stored := FromConfirmation(c)
	stored.ID = int64(len(m.records) + 1)
	m.records = append(m.records, stored)
	return nil
}

// ListBySession returns the confirmations of a session.
func (m *MemoryStore) ListBySession(ctx context.Context, sessionID string) ([]StoredConfirmation, error) {
	return m.filter(func(s StoredConfirmation) bool { return s.SessionID == sessionID }), nil
}

// ListByContext returns the confirmations of an event.
func (m *MemoryStore) ListByContext(ctx context.Context, contextID string) ([]StoredConfirmation, error) {
	return m.filter(func(s StoredConfirmation) bool { return s.ContextID == contextID }), nil
}

// Count returns the number of stored confirmations.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MemoryStore) filter(keep func(StoredConfirmation) bool) []StoredConfirmation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StoredConfirmation
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
