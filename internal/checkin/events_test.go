package checkin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-checkin/internal/metrics"
)

func TestBroadcasterConfirmationDisplacesOldestOnFullListener(t *testing.T) {
	var b broadcaster
	ch := b.add()
	dropped := metrics.DroppedEventsTotal.WithLabelValues(string(EventState))
	before := metrics.CounterValue(dropped)

	for range eventBuffer {
		require.Zero(t, b.send(Event{Type: EventState, State: StateScanning}))
	}
	assert.Equal(t, 1, b.send(Event{Type: EventState, State: StateProcessing}))
	assert.Zero(t, b.send(Event{Type: EventConfirmed, Match: &Match{Subject: "S1"}}))
	b.close()

	var got []Event
	for e := range ch {
		got = append(got, e)
	}
	require.Len(t, got, eventBuffer)
	assert.Equal(t, EventConfirmed, got[len(got)-1].Type)
	assert.Equal(t, "S1", got[len(got)-1].Match.Subject)
	assert.Equal(t, float64(2), metrics.CounterValue(dropped)-before)
}

func TestBroadcasterSendToClosed(t *testing.T) {
	var b broadcaster
	b.close()

	ch := b.add()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, b.send(Event{Type: EventFatal}))
}
