package testutil

import (
	"sync"
	"testing"

	"github.com/emcomm-tools/et-launcher/pkg/events"
)

// EventRecorder is a synchronous events.Sink that keeps everything it is
// given, in publish order.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Publish implements events.Sink
func (r *EventRecorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// OfType returns the recorded events of one type.
func (r *EventRecorder) OfType(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ForSession returns the recorded events for one launch session.
func (r *EventRecorder) ForSession(id string) []events.Event {
	var out []events.Event
	for _, e := range r.Events() {
		if e.SessionID == id {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of recorded events of one type.
func (r *EventRecorder) Count(t events.EventType) int {
	return len(r.OfType(t))
}

// RecordBus subscribes a new recorder to every event on bus. The recorder
// sees events in the order the bus delivers them.
func RecordBus(t testing.TB, bus *events.EventBus) *EventRecorder {
	t.Helper()
	rec := NewEventRecorder()
	t.Cleanup(bus.SubscribeAll(rec.Publish))
	return rec
}
