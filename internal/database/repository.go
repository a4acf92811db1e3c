package database

import (
	"context"

	"github.com/kozaktomas/face-checkin/internal/checkin"
)

// ConfirmationReader provides read-only access to the confirmation journal
type ConfirmationReader interface {
	// ListBySession returns the confirmations of one session in recording order
	ListBySession(ctx context.Context, sessionID string) ([]StoredConfirmation, error)
	// ListByContext returns every confirmation recorded against an event
	ListByContext(ctx context.Context, contextID string) ([]StoredConfirmation, error)
	// Count returns the total number of confirmations stored
	Count(ctx context.Context) (int, error)
}

// ConfirmationWriter appends to the confirmation journal.
// Record is idempotent per session and subject, so it satisfies checkin.Journal.
type ConfirmationWriter interface {
	Record(ctx context.Context, c checkin.Confirmation) error
}

// ConfirmationStore combines read and write access
type ConfirmationStore interface {
	ConfirmationReader
	ConfirmationWriter
}

// FromConfirmation converts a journal entry into its stored form.
func FromConfirmation(c checkin.Confirmation) StoredConfirmation {
	return StoredConfirmation{
		SessionID:   c.SessionID,
		ContextID:   c.ContextID,
		Mode:        string(c.Mode),
		Subject:     c.Match.Subject,
		ConfirmedAt: c.Match.ConfirmedAt,
		Confidence:  c.Match.Confidence,
		RecordedAt:  c.RecordedAt,
	}
}
