package process

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/fault"
	"github.com/emcomm-tools/et-launcher/pkg/events"
)

// SettingsSource supplies the terminal configuration for each launch.
type SettingsSource interface {
	Load() (config.Settings, error)
}

// Request describes one launch. Target identifies it in notifications.
type Request struct {
	Target        string
	Command       string
	Args          []string
	CaptureOutput bool
}

// Launcher spawns helper programs without blocking the caller and reports
// their completion on an events.Sink.
type Launcher struct {
	settings SettingsSource
	sink     events.Sink
	log      zerolog.Logger
	sessions map[string]*Session
	mu       sync.RWMutex

	// wait reaps the child; swapped in tests.
	wait func(cmd *exec.Cmd) error
}

func NewLauncher(settings SettingsSource, sink events.Sink, log zerolog.Logger) *Launcher {
	return &Launcher{
		settings: settings,
		sink:     sink,
		log:      log.With().Str("component", "launcher").Logger(),
		sessions: make(map[string]*Session),
		wait:     (*exec.Cmd).Wait,
	}
}

// Launch runs target inside the configured terminal:
// <terminal_command> <terminal_arg> <target>. It returns once the terminal
// has been spawned.
func (l *Launcher) Launch(target string) (*Session, error) {
	settings, err := l.settings.Load()
	if err != nil {
		return nil, err
	}

	var args []string
	if settings.TerminalArg != "" {
		args = append(args, settings.TerminalArg)
	}
	args = append(args, target)

	return l.Start(Request{
		Target:  target,
		Command: settings.TerminalCommand,
		Args:    args,
	})
}

// LaunchDirect runs command without the terminal wrapper.
func (l *Launcher) LaunchDirect(command string, args ...string) (*Session, error) {
	return l.Start(Request{Target: command, Command: command, Args: args})
}

// Start spawns req.Command. A spawn failure is returned as a fault.Spawn
// error and produces no notification. Otherwise exactly one of
// launch.completed or launch.failed is published after the child exits.
func (l *Launcher) Start(req Request) (*Session, error) {
	if req.Target == "" {
		req.Target = req.Command
	}

	cmd := exec.Command(req.Command, req.Args...)
	detach(cmd)

	var stdout io.ReadCloser
	if req.CaptureOutput {
		var err error
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return nil, fault.New(fault.Spawn, "launch", req.Command, err)
		}
	}

	if err := cmd.Start(); err != nil {
		l.log.Warn().Err(err).Str("target", req.Target).Strs("cmd", cmd.Args).Msg("spawn failed")
		return nil, fault.New(fault.Spawn, "launch", req.Command, err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		Target:    req.Target,
		Command:   req.Command,
		Args:      append([]string(nil), req.Args...),
		PID:       cmd.Process.Pid,
		StartTime: time.Now(),
		done:      make(chan struct{}),
		result:    Result{Status: StatusRunning},
	}

	l.mu.Lock()
	l.sessions[s.ID] = s
	l.mu.Unlock()

	l.log.Info().Str("session", s.ID).Str("target", s.Target).Int("pid", s.PID).Msg("launched")
	l.sink.Publish(events.Event{
		Type:      events.LaunchStarted,
		SessionID: s.ID,
		Data: map[string]interface{}{
			"target": s.Target,
			"pid":    s.PID,
			"cmd":    cmd.Args,
		},
	})

	go l.await(cmd, s, stdout)

	return s, nil
}

// await owns cmd after a successful spawn. Only the immutable session and
// the sink are shared with the caller.
func (l *Launcher) await(cmd *exec.Cmd, s *Session, stdout io.ReadCloser) {
	if stdout != nil {
		// The pipe must be drained before Wait closes it.
		l.streamOutput(s, stdout)
	}

	err := l.wait(cmd)
	result := classify(err)

	data := map[string]interface{}{
		"target":   s.Target,
		"duration": time.Since(s.StartTime).String(),
	}
	eventType := events.LaunchCompleted
	if result.Status == StatusFailed {
		eventType = events.LaunchFailed
		data["error"] = result.Err.Error()
		l.log.Error().Err(result.Err).Str("session", s.ID).Str("target", s.Target).Msg("wait failed")
	} else {
		data["exitCode"] = result.ExitCode
		l.log.Info().Str("session", s.ID).Str("target", s.Target).Int("exit_code", result.ExitCode).Msg("exited")
	}

	l.notify(events.Event{Type: eventType, SessionID: s.ID, Data: data})

	l.mu.Lock()
	delete(l.sessions, s.ID)
	l.mu.Unlock()

	s.finish(result)
}

// notify delivers the completion before the session is released, so Done
// never closes ahead of the observers.
func (l *Launcher) notify(e events.Event) {
	if ss, ok := l.sink.(events.SyncSink); ok {
		ss.PublishSync(e)
		return
	}
	l.sink.Publish(e)
}

// classify maps the outcome of Wait. Any exit, whatever its status, is a
// completion; only a failure of the wait itself is a failure.
func classify(err error) Result {
	if err == nil {
		return Result{Status: StatusCompleted}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{Status: StatusCompleted, ExitCode: exitErr.ExitCode()}
	}
	return Result{Status: StatusFailed, Err: err}
}

func (l *Launcher) streamOutput(s *Session, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		l.sink.Publish(events.Event{
			Type:      events.LaunchOutput,
			SessionID: s.ID,
			Data: map[string]interface{}{
				"target": s.Target,
				"line":   scanner.Text(),
			},
		})
	}
	if err := scanner.Err(); err != nil {
		l.log.Warn().Err(err).Str("session", s.ID).Msg("output stream ended early")
		// Keep the pipe drained so the child never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, r)
	}
}

// Sessions returns the in-flight sessions ordered by start time.
func (l *Launcher) Sessions() []SessionInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]SessionInfo, 0, len(l.sessions))
	for _, s := range l.sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Session returns an in-flight session by ID.
func (l *Launcher) Session(id string) (*Session, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.sessions[id]
	return s, ok
}
