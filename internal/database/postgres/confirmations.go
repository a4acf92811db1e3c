package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-checkin/internal/checkin"
	"github.com/kozaktomas/face-checkin/internal/database"
)

// ConfirmationRepository provides PostgreSQL-backed confirmation storage
type ConfirmationRepository struct {
	pool *Pool
}

// NewConfirmationRepository creates a new PostgreSQL confirmation repository
func NewConfirmationRepository(pool *Pool) *ConfirmationRepository {
	return &ConfirmationRepository{pool: pool}
}

// Record stores a confirmation. A subject already recorded for the session is
// left untouched.
func (r *ConfirmationRepository) Record(ctx context.Context, c checkin.Confirmation) error {
	query := `
		INSERT INTO checkin_confirmations (session_id, context_id, mode, subject, confirmed_at, confidence, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, subject) DO NOTHING
	`

	var confidence sql.NullFloat64
	if c.Match.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *c.Match.Confidence, Valid: true}
	}

	_, err := r.pool.Exec(ctx, query,
		c.SessionID, c.ContextID, string(c.Mode), c.Match.Subject, c.Match.ConfirmedAt, confidence, c.RecordedAt)
	if err != nil {
		return fmt.Errorf("record confirmation: %w", err)
	}
	return nil
}

// ListBySession returns the confirmations of one session in recording order
func (r *ConfirmationRepository) ListBySession(ctx context.Context, sessionID string) ([]database.StoredConfirmation, error) {
	return r.list(ctx, "session_id", sessionID)
}

// ListByContext returns every confirmation recorded against an event
func (r *ConfirmationRepository) ListByContext(ctx context.Context, contextID string) ([]database.StoredConfirmation, error) {
	return r.list(ctx, "context_id", contextID)
}

func (r *ConfirmationRepository) list(ctx context.Context, column, value string) ([]database.StoredConfirmation, error) {
	// column is one of two constants above, never user input.
	query := `
		SELECT id, session_id, context_id, mode, subject, confirmed_at, confidence, recorded_at
		FROM checkin_confirmations
		WHERE ` + column + ` = $1
		ORDER BY recorded_at, id
	`

	rows, err := r.pool.Query(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("list confirmations: %w", err)
	}
	defer rows.Close()

	var out []database.StoredConfirmation
	for rows.Next() {
		var (
			s          database.StoredConfirmation
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&s.ID, &s.SessionID, &s.ContextID, &s.Mode, &s.Subject, &s.ConfirmedAt, &confidence, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan confirmation: %w", err)
		}
		if confidence.Valid {
			v := confidence.Float64
			s.Confidence = &v
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate confirmations: %w", err)
	}
	return out, nil
}

// Count returns the total number of confirmations stored
func (r *ConfirmationRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM checkin_confirmations").Scan(&count); err != nil {
		return 0, fmt.Errorf("count confirmations: %w", err)
	}
	return count, nil
}
