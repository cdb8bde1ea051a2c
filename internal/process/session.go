package process

import (
	"sync"
	"time"
)

type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// Result describes how a session ended. ExitCode is only meaningful when
// Status is StatusCompleted; a non-zero exit still counts as completed.
type Result struct {
	Status   SessionStatus
	ExitCode int
	Err      error
}

// Session is one spawned process and its pending notification. It lives
// until the notification has been delivered.
type Session struct {
	ID        string
	Target    string
	Command   string
	Args      []string
	PID       int
	StartTime time.Time

	done   chan struct{}
	mu     sync.RWMutex
	result Result
}

// SessionInfo is a read-only snapshot of a session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Command   string    `json:"command"`
	Args      []string  `json:"args"`
	PID       int       `json:"pid"`
	StartTime time.Time `json:"start_time"`
}

// Done is closed once the completion or failure notification for this
// session has been delivered. On an events.SyncSink that means every
// subscriber has handled it.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns the outcome. Before Done is closed the status is
// StatusRunning.
func (s *Session) Result() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		Target:    s.Target,
		Command:   s.Command,
		Args:      append([]string(nil), s.Args...),
		PID:       s.PID,
		StartTime: s.StartTime,
	}
}

func (s *Session) finish(r Result) {
	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
	close(s.done)
}
