// Package app wires the stores, the launcher and the console state into the
// operations the presentation layer invokes.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/emcomm-tools/et-launcher/internal/catalog"
	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/console"
	"github.com/emcomm-tools/et-launcher/internal/grid"
	"github.com/emcomm-tools/et-launcher/internal/logs"
	"github.com/emcomm-tools/et-launcher/internal/process"
	"github.com/emcomm-tools/et-launcher/internal/radio"
	"github.com/emcomm-tools/et-launcher/pkg/events"
)

// outputHistory bounds the launch activity kept for late observers.
const outputHistory = 1000

type Options struct {
	Paths          config.Paths
	Log            zerolog.Logger
	ConsoleVisible bool
	// Bus is created when nil and shut down by Close.
	Bus *events.EventBus
}

type App struct {
	Paths    config.Paths
	Settings *config.SettingsStore
	Users    *config.UserStore
	Modes    *config.ModeStore
	Radio    *radio.Reader
	Launcher *process.Launcher
	Console  *console.State
	Output   *logs.Store
	Bus      *events.EventBus
	Log      zerolog.Logger

	ownsBus      bool
	detachOutput func()
}

func New(opts Options) *App {
	bus := opts.Bus
	ownsBus := false
	if bus == nil {
		bus = events.NewEventBus()
		bus.SetLogger(opts.Log)
		ownsBus = true
	}

	output := logs.NewStore(outputHistory)
	settings := config.NewSettingsStore(opts.Paths, opts.Log)
	return &App{
		Paths:    opts.Paths,
		Settings: settings,
		Users:    config.NewUserStore(opts.Paths),
		Modes:    config.NewModeStore(opts.Paths),
		Radio:    radio.NewReader(opts.Paths.RadioFile),
		Launcher: process.NewLauncher(settings, bus, opts.Log),
		Console:  console.NewState(opts.ConsoleVisible, bus),
		Output:   output,
		Bus:      bus,
		Log:      opts.Log,

		ownsBus:      ownsBus,
		detachOutput: output.Attach(bus),
	}
}

// Close stops the event bus if the App created it. Launched programs keep
// running.
func (a *App) Close() {
	a.detachOutput()
	if a.ownsBus {
		a.Bus.Shutdown()
	}
}

func (a *App) ReadUser() (config.UserProfile, error) {
	return a.Users.Load()
}

func (a *App) WriteUser(u config.UserProfile) error {
	if err := a.Users.Save(u); err != nil {
		return err
	}
	a.Log.Info().Str("callsign", u.Callsign).Msg("user profile saved")
	return nil
}

func (a *App) ReadMode() (string, error) {
	return a.Modes.Load()
}

func (a *App) WriteMode(mode string) error {
	return a.Modes.Save(mode)
}

// ActiveRadio returns "<vendor> <model>" or radio.NoRadio.
func (a *App) ActiveRadio() (string, error) {
	return a.Radio.Current()
}

func (a *App) LoadSettings() (config.Settings, error) {
	return a.Settings.Load()
}

func (a *App) SaveSettings(s config.Settings) error {
	return a.Settings.Save(s)
}

// Catalog returns the configured launch targets.
func (a *App) Catalog() (catalog.Catalog, error) {
	return catalog.LoadFirst(a.Log, a.Paths.Catalog(), a.Paths.CatalogYAML())
}

// Launch starts target in the configured terminal.
func (a *App) Launch(target string) (*process.Session, error) {
	return a.Launcher.Launch(target)
}

// LaunchApp starts a catalog entry, directly or through the terminal.
func (a *App) LaunchApp(entry catalog.App) (*process.Session, error) {
	if !entry.Direct {
		return a.Launcher.Launch(entry.Command)
	}
	argv := entry.Argv()
	if len(argv) == 0 {
		return nil, fmt.Errorf("catalog entry %q has no command", entry.Name)
	}
	return a.Launcher.Start(process.Request{
		Target:        entry.Name,
		Command:       argv[0],
		Args:          argv[1:],
		CaptureOutput: entry.Capture,
	})
}

// RunApp runs name through the terminal and blocks until it exits. It
// returns stdout on success and an error carrying stderr otherwise.
func (a *App) RunApp(ctx context.Context, name string) (string, error) {
	settings, err := a.Settings.Load()
	if err != nil {
		return "", err
	}

	var args []string
	if settings.TerminalArg != "" {
		args = append(args, settings.TerminalArg)
	}
	args = append(args, name)

	out, err := process.RunSync(ctx, settings.TerminalCommand, args...)
	if err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("%s exited with status %d: %s", name, out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return out.Stdout, nil
}

// GridFromSystemInfo asks the system-info helper for the current position
// and converts it to a locator. A helper that cannot produce coordinates
// prints a diagnostic, which is returned unchanged.
func (a *App) GridFromSystemInfo(ctx context.Context) (string, error) {
	settings, err := a.Settings.Load()
	if err != nil {
		return "", err
	}

	var args []string
	if settings.SysInfoArg != "" {
		args = append(args, settings.SysInfoArg)
	}

	out, err := process.RunSync(ctx, settings.SysInfoCmd, args...)
	if err != nil {
		return "", err
	}

	reply := out.Stdout
	if !out.Success && strings.TrimSpace(reply) == "" {
		reply = out.Stderr
	}
	a.Log.Debug().Str("reply", strings.TrimSpace(reply)).Bool("success", out.Success).Msg("system info")
	return grid.FromSystemInfo(reply), nil
}

// ToggleConsole flips console visibility and returns the new value.
func (a *App) ToggleConsole() bool {
	return a.Console.Toggle()
}

// WatchRadio starts publishing radio-info events for the descriptor and
// announces the current radio once.
func (a *App) WatchRadio() (*radio.Watcher, error) {
	w, err := radio.NewWatcher(a.Radio, a.Bus, a.Log)
	if err != nil {
		return nil, err
	}
	w.Start()
	w.Announce()
	return w, nil
}
