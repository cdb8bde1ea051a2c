package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emcomm-tools/et-launcher/internal/catalog"
	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/fault"
	"github.com/emcomm-tools/et-launcher/internal/radio"
	"github.com/emcomm-tools/et-launcher/internal/testutil"
	"github.com/emcomm-tools/et-launcher/pkg/events"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	root := t.TempDir()
	paths := config.NewPaths(root)
	paths.RadioFile = filepath.Join(root, "radios.d", "active-radio.json")

	a := New(Options{Paths: paths, Log: zerolog.Nop()})
	t.Cleanup(a.Close)
	return a
}

func useSysInfo(t *testing.T, a *App, body string) {
	t.Helper()
	script := testutil.WriteScript(t, t.TempDir(), "et-system-info", body)
	settings := config.DefaultSettings()
	settings.SysInfoCmd = script
	require.NoError(t, a.SaveSettings(settings))
}

func TestUserAndMode(t *testing.T) {
	a := newTestApp(t)

	_, err := a.ReadUser()
	assert.True(t, fault.Is(err, fault.NotFound))
	_, err = a.ReadMode()
	assert.True(t, fault.Is(err, fault.NotFound))

	u := config.UserProfile{Callsign: "VE7ABC", Grid: "CN89", WinlinkPasswd: "pw"}
	require.NoError(t, a.WriteUser(u))
	require.NoError(t, a.WriteMode("vara-fm"))

	got, err := a.ReadUser()
	require.NoError(t, err)
	assert.Equal(t, u, got)

	mode, err := a.ReadMode()
	require.NoError(t, err)
	assert.Equal(t, "vara-fm", mode)
}

func TestActiveRadio(t *testing.T) {
	a := newTestApp(t)

	got, err := a.ActiveRadio()
	require.NoError(t, err)
	assert.Equal(t, radio.NoRadio, got)

	require.NoError(t, config.Write(a.Paths.RadioFile, radio.Descriptor{Vendor: "Icom", Model: "IC-7300"}))
	got, err = a.ActiveRadio()
	require.NoError(t, err)
	assert.Equal(t, "Icom IC-7300", got)
}

func TestGridFromSystemInfo(t *testing.T) {
	a := newTestApp(t)
	useSysInfo(t, a, `[ "$1" = "et-gps" ] || exit 9
echo 45.5,-122.6`)

	got, err := a.GridFromSystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CN85qm", got)
}

func TestGridFromSystemInfoForwardsDiagnostic(t *testing.T) {
	a := newTestApp(t)
	useSysInfo(t, a, `echo "GPS not fixed"; exit 1`)

	got, err := a.GridFromSystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GPS not fixed\n", got)
}

func TestGridFromSystemInfoFallsBackToStderr(t *testing.T) {
	a := newTestApp(t)
	useSysInfo(t, a, `echo "gpsd not running" >&2; exit 1`)

	got, err := a.GridFromSystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpsd not running\n", got)
}

func TestGridFromSystemInfoMissingHelper(t *testing.T) {
	a := newTestApp(t)
	settings := config.DefaultSettings()
	settings.SysInfoCmd = filepath.Join(t.TempDir(), "missing")
	require.NoError(t, a.SaveSettings(settings))

	_, err := a.GridFromSystemInfo(context.Background())
	assert.True(t, fault.Is(err, fault.Spawn))
}

func TestRunApp(t *testing.T) {
	testutil.RequireUnix(t)
	a := newTestApp(t)
	require.NoError(t, a.SaveSettings(config.Settings{TerminalCommand: "/bin/sh", TerminalArg: "-c"}))

	out, err := a.RunApp(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	_, err = a.RunApp(context.Background(), "echo broken >&2; exit 4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 4")
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadSettingsInitializesDocument(t *testing.T) {
	a := newTestApp(t)
	assert.NoFileExists(t, a.Paths.Settings())

	got, err := a.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), got)
	assert.FileExists(t, a.Paths.Settings())
}

func TestLaunchSpawnError(t *testing.T) {
	a := newTestApp(t)
	settings := config.DefaultSettings()
	settings.TerminalCommand = filepath.Join(t.TempDir(), "mlterm")
	require.NoError(t, a.SaveSettings(settings))

	_, err := a.Launch("et-user")
	assert.True(t, fault.Is(err, fault.Spawn))
	assert.Empty(t, a.Launcher.Sessions())
}

func TestLaunchAppDirectWithCapture(t *testing.T) {
	testutil.RequireUnix(t)
	a := newTestApp(t)

	var mu sync.Mutex
	var lines []string
	a.Bus.Subscribe(events.LaunchOutput, func(e events.Event) {
		mu.Lock()
		lines = append(lines, e.Data["line"].(string))
		mu.Unlock()
	})

	s, err := a.LaunchApp(catalog.App{Name: "hello", Command: "/bin/echo de KT7RUN", Direct: true, Capture: true})
	require.NoError(t, err)
	assert.Equal(t, "hello", s.Target)
	<-s.Done()

	testutil.RequireEventually(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lines) == 1
	}, "captured output delivered")
	mu.Lock()
	assert.Equal(t, "de KT7RUN", lines[0])
	mu.Unlock()
}

func TestLaunchAppThroughTerminal(t *testing.T) {
	testutil.RequireUnix(t)
	a := newTestApp(t)
	require.NoError(t, a.SaveSettings(config.Settings{TerminalCommand: "/bin/sh", TerminalArg: "-c"}))

	s, err := a.LaunchApp(catalog.App{Name: "mode", Command: "exit 0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-c", "exit 0"}, s.Args)
	<-s.Done()
}

func TestCatalogDefault(t *testing.T) {
	a := newTestApp(t)
	c, err := a.Catalog()
	require.NoError(t, err)
	assert.Equal(t, catalog.Default(), c)
}

func TestToggleConsolePublishes(t *testing.T) {
	a := newTestApp(t)

	var mu sync.Mutex
	var seen []bool
	a.Bus.Subscribe(events.ConsoleVisibilityChanged, func(e events.Event) {
		mu.Lock()
		seen = append(seen, e.Data["visible"].(bool))
		mu.Unlock()
	})

	assert.True(t, a.ToggleConsole())
	testutil.RequireEventually(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0]
	}, "visibility change delivered")
}

func TestWatchRadio(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(a.Paths.RadioFile), 0755))

	var mu sync.Mutex
	var radios []string
	a.Bus.Subscribe(events.RadioInfo, func(e events.Event) {
		mu.Lock()
		radios = append(radios, e.Data["radio"].(string))
		mu.Unlock()
	})

	w, err := a.WatchRadio()
	require.NoError(t, err)
	defer w.Stop()

	testutil.RequireEventually(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(radios) > 0 && radios[0] == radio.NoRadio
	}, "initial announcement")

	require.NoError(t, config.Write(a.Paths.RadioFile, radio.Descriptor{Vendor: "Xiegu", Model: "G90"}))
	testutil.RequireEventually(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(radios) > 0 && radios[len(radios)-1] == "Xiegu G90"
	}, "descriptor change announced")
}

func TestOutputRecordsLaunches(t *testing.T) {
	testutil.RequireUnix(t)
	a := newTestApp(t)

	s, err := a.LaunchApp(catalog.App{Name: "beacon", Command: "/bin/echo CQ CQ", Direct: true, Capture: true})
	require.NoError(t, err)
	<-s.Done()

	got := a.Output.Recent(s.ID, 0)
	require.Len(t, got, 3)
	for _, e := range got {
		assert.Equal(t, "beacon", e.Target)
	}
	assert.Contains(t, got[0].Content, "started")
	assert.Equal(t, "CQ CQ", got[1].Content)
	assert.Equal(t, "exited with status 0", got[2].Content)
}

func TestLaunchEventsKeepOrderOnDefaultBus(t *testing.T) {
	testutil.RequireUnix(t)
	a := newTestApp(t)
	rec := testutil.RecordBus(t, a.Bus)

	script := testutil.WriteScript(t, t.TempDir(), "count", `i=1
while [ $i -le 300 ]; do echo $i; i=$((i+1)); done`)

	for run := 0; run < 5; run++ {
		s, err := a.LaunchApp(catalog.App{Name: "count", Command: script, Direct: true, Capture: true})
		require.NoError(t, err)
		<-s.Done()

		got := rec.ForSession(s.ID)
		require.Len(t, got, 302, "run %d", run)
		assert.Equal(t, events.LaunchStarted, got[0].Type)
		for i := 1; i <= 300; i++ {
			require.Equal(t, fmt.Sprint(i), got[i].Data["line"], "run %d", run)
		}
		assert.Equal(t, events.LaunchCompleted, got[301].Type)

		history := a.Output.Recent(s.ID, 0)
		require.Len(t, history, 302)
		assert.Equal(t, "1", history[1].Content)
		assert.Equal(t, "300", history[300].Content)
		assert.Equal(t, "exited with status 0", history[301].Content)
	}
}
