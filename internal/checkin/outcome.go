package checkin

import (
	"context"
	"time"

	"github.com/kozaktomas/face-checkin/internal/frame"
)

// OutcomeKind tags a verification outcome.
type OutcomeKind string

// OutcomeKind values.
const (
	OutcomeMatched        OutcomeKind = "matched"
	OutcomeAlreadyMatched OutcomeKind = "already-matched"
	OutcomeNoMatch        OutcomeKind = "no-match"
	OutcomeBatch          OutcomeKind = "batch"
)

// Match is one recognized subject.
type Match struct {
	Subject string `json:"subject"`
	// ConfirmedAt is the attendance time as reported by the server.
	ConfirmedAt string   `json:"confirmed_at,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	// Already is set when the server had recorded the subject before this
	// attempt.
	Already bool `json:"already,omitempty"`
}

// Outcome is the result of one verification attempt.
type Outcome struct {
	Kind OutcomeKind
	// Match is set for matched and already-matched.
	Match *Match
	// Matches is set for batch.
	Matches []Match
}

// Result is what the reducer consumes: an outcome or an error.
type Result struct {
	Outcome *Outcome
	Err     error
}

// Verifier sends one frame for recognition against a context.
type Verifier interface {
	Verify(ctx context.Context, contextID string, f *frame.Frame) (*Outcome, error)
}

// VerifyFunc adapts a function to Verifier.
type VerifyFunc func(ctx context.Context, contextID string, f *frame.Frame) (*Outcome, error)

// Verify calls fn.
func (fn VerifyFunc) Verify(ctx context.Context, contextID string, f *frame.Frame) (*Outcome, error) {
	return fn(ctx, contextID, f)
}

// ContextChecker validates that a context is open for check-in before the
// camera is acquired.
type ContextChecker interface {
	CheckContext(ctx context.Context, contextID string) error
}

// SessionEnder closes a batch session on the server.
type SessionEnder interface {
	EndSession(ctx context.Context, contextID string) error
}

// Confirmation is one subject confirmed in a session.
type Confirmation struct {
	SessionID  string    `json:"session_id"`
	ContextID  string    `json:"context_id"`
	Mode       Mode      `json:"mode"`
	Match      Match     `json:"match"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal stores confirmations. Record must be idempotent per session and
// subject.
type Journal interface {
	Record(ctx context.Context, c Confirmation) error
}
