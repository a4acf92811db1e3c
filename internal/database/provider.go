package database

import (
	"context"
	"errors"
	"sync"
)

var (
	providerMu                sync.RWMutex
	postgresConfirmationStore func() ConfirmationStore
	postgresInitialized       bool
)

// RegisterPostgresBackend registers the PostgreSQL repository constructor.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(store func() ConfirmationStore) {
	providerMu.Lock()
	defer providerMu.Unlock()
	postgresConfirmationStore = store
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return postgresInitialized
}

// GetConfirmationStore returns the PostgreSQL store when DATABASE_URL was
// configured, and the process-wide in-memory store otherwise.
func GetConfirmationStore(ctx context.Context) (ConfirmationStore, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if !postgresInitialized {
		return defaultMemoryStore, nil
	}
	if postgresConfirmationStore == nil {
		return nil, errors.New("PostgreSQL confirmation store not registered")
	}
	return postgresConfirmationStore(), nil
}

var defaultMemoryStore = NewMemoryStore()
