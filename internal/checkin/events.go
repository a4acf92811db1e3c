package checkin

import (
	"sync"
	"time"

	"github.com/kozaktomas/face-checkin/internal/metrics"
)

// eventBuffer is the per-listener channel size.
const eventBuffer = 100

// EventType tags a session event.
type EventType string

// EventType values.
const (
	// EventState is sent for every published state change.
	EventState EventType = "state"
	// EventConfirmed is sent once per subject per session.
	EventConfirmed EventType = "confirmed"
	// EventFatal is sent once when the session hits a fatal error.
	EventFatal EventType = "fatal"
)

// Event is a discrete notification. State changes and confirmations are
// separate so that rendering the same state twice never re-fires a
// confirmation.
type Event struct {
	Type     EventType `json:"type"`
	State    State     `json:"state"`
	Match    *Match    `json:"match,omitempty"`
	Category Category  `json:"category,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// broadcaster fans events out to listeners. Slow listeners lose events
// rather than blocking the capture loop, but a confirmation or fatal error
// displaces the oldest buffered event instead of being the one lost.
type broadcaster struct {
	mu        sync.RWMutex
	listeners []chan Event
	closed    bool
}

// add registers a listener. On a closed broadcaster the returned channel is
// already closed.
func (b *broadcaster) add() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, eventBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// remove unregisters and closes a listener.
func (b *broadcaster) remove(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// send delivers an event to all listeners and returns how many of them
// missed it.
func (b *broadcaster) send(event Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	missed := 0
	for _, listener := range b.listeners {
		if !deliver(listener, event) {
			metrics.DroppedEventsTotal.WithLabelValues(string(event.Type)).Inc()
			missed++
		}
	}
	return missed
}

func deliver(ch chan Event, event Event) bool {
	select {
	case ch <- event:
		return true
	default:
	}
	if event.Type == EventState {
		return false
	}

	select {
	case old := <-ch:
		metrics.DroppedEventsTotal.WithLabelValues(string(old.Type)).Inc()
	default:
	}
	select {
	case ch <- event:
		return true
	default:
		return false
	}
}

// close closes every listener; later adds get a closed channel.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}
