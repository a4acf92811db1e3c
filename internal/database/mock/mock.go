// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-checkin/internal/checkin"
	"github.com/kozaktomas/face-checkin/internal/database"
)

// MockConfirmationStore is a mock implementation of database.ConfirmationStore
type MockConfirmationStore struct {
	mu      sync.RWMutex
	records []database.StoredConfirmation

	// Error injection
	RecordError error
	ListError   error
	CountError  error
}

// NewMockConfirmationStore creates a new mock confirmation store
func NewMockConfirmationStore() *MockConfirmationStore {
	return &MockConfirmationStore{}
}

// AddConfirmation adds a stored confirmation directly
func (m *MockConfirmationStore) AddConfirmation(c database.StoredConfirmation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, c)
}

// Record stores a confirmation without deduplication, so tests can assert
// exactly what the caller sent
func (m *MockConfirmationStore) Record(ctx context.Context, c checkin.Confirmation) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, database.FromConfirmation(c))
	return nil
}

// ListBySession returns the confirmations of a session
func (m *MockConfirmationStore) ListBySession(ctx context.Context, sessionID string) ([]database.StoredConfirmation, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.StoredConfirmation
	for _, r := range m.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListByContext returns the confirmations of an event
func (m *MockConfirmationStore) ListByContext(ctx context.Context, contextID string) ([]database.StoredConfirmation, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.StoredConfirmation
	for _, r := range m.records {
		if r.ContextID == contextID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Count returns the number of records
func (m *MockConfirmationStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Subjects returns the recorded subjects in order
func (m *MockConfirmationStore) Subjects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Subject)
	}
	return out
}
