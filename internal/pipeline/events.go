package pipeline

import (
	"sync"
	"time"
)

// EventType classifies messages emitted while a session works.
type EventType string

const (
	EventTypeState    EventType = "state"
	EventTypeProgress EventType = "progress"
	EventTypeError    EventType = "error"
	EventTypeResult   EventType = "result"
)

// Event is a sequenced payload consumed by polling front-ends.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	Type      EventType `json:"type"`
	State     State     `json:"state,omitempty"`
	Message   string    `json:"message,omitempty"`
	Done      int       `json:"done,omitempty"`
	Total     int       `json:"total,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if len(b.events) == b.maxEvents {
		// Drop the oldest in place; the backing array never grows past maxEvents.
		n := copy(b.events, b.events[1:])
		b.events = b.events[:n]
	}
	b.events = append(b.events, event)
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// Seqs are contiguous, so the first newer event is found by offset.
	if len(b.events) == 0 || seq >= b.events[len(b.events)-1].Seq {
		return nil
	}
	start := 0
	if first := b.events[0].Seq; seq >= first {
		start = int(seq - first + 1)
	}
	return append([]Event(nil), b.events[start:]...)
}
