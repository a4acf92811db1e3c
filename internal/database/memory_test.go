package database

import (
	"context"
	"testing"
	"time"

	"github.com/kozaktomas/face-checkin/internal/checkin"
)

func confirmation(session, event, subject string) checkin.Confirmation {
	return checkin.Confirmation{
		SessionID:  session,
		ContextID:  event,
		Mode:       checkin.ModeBatch,
		Match:      checkin.Match{Subject: subject, ConfirmedAt: "09:00 AM"},
		RecordedAt: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStoreIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, c := range []checkin.Confirmation{
		confirmation("s1", "7", "alice"),
		confirmation("s1", "7", "alice"),
		confirmation("s1", "7", "bob"),
		confirmation("s2", "7", "alice"),
		confirmation("s3", "8", "carol"),
	} {
		if err := store.Record(ctx, c); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	count, _ := store.Count(ctx)
	if count != 4 {
		t.Errorf("expected 4 confirmations, got %d", count)
	}

	s1, _ := store.ListBySession(ctx, "s1")
	if len(s1) != 2 || s1[0].Subject != "alice" || s1[1].Subject != "bob" {
		t.Errorf("unexpected session records %+v", s1)
	}

	ev, _ := store.ListByContext(ctx, "7")
	if len(ev) != 3 {
		t.Errorf("expected 3 records for event 7, got %d", len(ev))
	}
	if ev[0].Mode != "batch" || ev[0].ConfirmedAt != "09:00 AM" {
		t.Errorf("unexpected stored fields %+v", ev[0])
	}
}

func TestGetConfirmationStoreDefaultsToMemory(t *testing.T) {
	if IsInitialized() {
		t.Skip("postgres backend registered")
	}
	store, err := GetConfirmationStore(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected in-memory store, got %T", store)
	}
}
