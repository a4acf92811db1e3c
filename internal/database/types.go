package database

import (
	"time"
)

// StoredConfirmation is one subject confirmed present in a capture session.
type StoredConfirmation struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	ContextID   string    `json:"event_id"`
	Mode        string    `json:"mode"`
	Subject     string    `json:"subject"`
	ConfirmedAt string    `json:"confirmed_at,omitempty"` // attendance time as reported by the server
	Confidence  *float64  `json:"confidence,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}
