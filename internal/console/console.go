// Package console owns the launcher's console-visibility flag.
package console

import (
	"sync"

	"github.com/emcomm-tools/et-launcher/pkg/events"
)

// State is the single authority for whether the console pane is shown. It
// is not persisted across restarts.
type State struct {
	mu      sync.Mutex
	visible bool
	sink    events.Sink
}

func NewState(visible bool, sink events.Sink) *State {
	return &State{visible: visible, sink: sink}
}

// Toggle flips the flag, publishes console.visibility_changed and returns
// the new value. Flip and publish happen under one lock so observers see
// notifications in flip order.
func (s *State) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visible = !s.visible
	if s.sink != nil {
		s.sink.Publish(events.Event{
			Type: events.ConsoleVisibilityChanged,
			Data: map[string]interface{}{"visible": s.visible},
		})
	}
	return s.visible
}

// Visible returns the current value.
func (s *State) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}
