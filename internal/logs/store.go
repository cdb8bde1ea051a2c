// Package logs keeps a bounded history of launch activity so late
// observers (a reconnecting web client, the CLI) can see recent output.
package logs

import (
	"fmt"
	"sync"
	"time"

	"github.com/emcomm-tools/et-launcher/pkg/events"
	"github.com/emcomm-tools/et-launcher/pkg/filters"
)

type Entry struct {
	SessionID string    `json:"session_id"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	IsError   bool      `json:"is_error"`
}

type Store struct {
	entries    []Entry
	maxEntries int
	mu         sync.RWMutex
}

func NewStore(maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Store{
		entries:    make([]Entry, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// Add appends an entry, evicting the oldest once the store is full.
func (s *Store) Add(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxEntries {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, e)
}

// Recent returns up to limit of the newest entries, oldest first. An empty
// sessionID selects every session; limit <= 0 means no limit.
func (s *Store) Recent(sessionID string, limit int) []Entry {
	return s.Search(sessionID, nil, limit)
}

// Search is Recent restricted to entries whose content matches f. A nil
// filter matches everything.
func (s *Store) Search(sessionID string, f *filters.Filter, limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if sessionID != "" && s.entries[i].SessionID != sessionID {
			continue
		}
		if f != nil && !f.Matches(s.entries[i].Content) {
			continue
		}
		out = append(out, s.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
}

// Record converts a launch event into an entry. Other events are ignored.
func (s *Store) Record(e events.Event) {
	target, _ := e.Data["target"].(string)
	entry := Entry{SessionID: e.SessionID, Target: target, Timestamp: e.Timestamp}

	switch e.Type {
	case events.LaunchStarted:
		entry.Content = fmt.Sprintf("started (pid %v)", e.Data["pid"])
	case events.LaunchOutput:
		entry.Content = fmt.Sprint(e.Data["line"])
	case events.LaunchCompleted:
		entry.Content = fmt.Sprintf("exited with status %v", e.Data["exitCode"])
	case events.LaunchFailed:
		entry.Content = fmt.Sprintf("wait failed: %v", e.Data["error"])
		entry.IsError = true
	default:
		return
	}
	s.Add(entry)
}

// Attach subscribes the store to bus and returns a function that detaches
// it. One wildcard subscription keeps a session's entries in publish order.
func (s *Store) Attach(bus *events.EventBus) func() {
	return bus.SubscribeAll(s.Record)
}
