package tui

import (
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emcomm-tools/et-launcher/internal/app"
	"github.com/emcomm-tools/et-launcher/internal/catalog"
	"github.com/emcomm-tools/et-launcher/internal/config"
	"github.com/emcomm-tools/et-launcher/internal/fault"
	"github.com/emcomm-tools/et-launcher/internal/radio"
	"github.com/emcomm-tools/et-launcher/pkg/events"
)

func newTestModel(t *testing.T) (Model, *app.App) {
	t.Helper()
	root := t.TempDir()
	paths := config.NewPaths(root)
	paths.RadioFile = filepath.Join(root, "radios.d", "active-radio.json")

	a := app.New(app.Options{Paths: paths, Log: zerolog.Nop()})
	t.Cleanup(a.Close)

	m, err := NewModel(a)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), a
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModelListsCatalog(t *testing.T) {
	m, _ := newTestModel(t)

	assert.Len(t, m.apps.Items(), len(catalog.Default().Apps))
	first, ok := m.apps.SelectedItem().(appItem)
	require.True(t, ok)
	assert.Equal(t, "user", first.app.Name)
}

func TestConsoleKeyToggles(t *testing.T) {
	m, a := newTestModel(t)
	assert.False(t, m.consoleVisible)

	updated, _ := m.Update(keyRunes("c"))
	m = updated.(Model)
	assert.True(t, m.consoleVisible)
	assert.True(t, a.Console.Visible())
	assert.Contains(t, m.View(), "ET Launcher")

	updated, _ = m.Update(keyRunes("c"))
	m = updated.(Model)
	assert.False(t, m.consoleVisible)
	assert.False(t, a.Console.Visible())
}

func TestQuitKey(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestLaunchReportsSpawnError(t *testing.T) {
	m, a := newTestModel(t)
	settings := config.DefaultSettings()
	settings.TerminalCommand = filepath.Join(t.TempDir(), "no-terminal")
	require.NoError(t, a.SaveSettings(settings))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	res, ok := cmd().(launchResultMsg)
	require.True(t, ok)
	assert.True(t, fault.Is(res.err, fault.Spawn))
	assert.Equal(t, "Update User Info", res.target)

	updated, _ := m.Update(res)
	m = updated.(Model)
	require.Len(t, m.lines, 1)
	assert.Contains(t, m.lines[0], "Update User Info")
}

func TestBusEventsUpdateModel(t *testing.T) {
	m, _ := newTestModel(t)

	updated, cmd := m.Update(busEventMsg{event: events.Event{
		Type: events.LaunchOutput,
		Data: map[string]interface{}{"target": "fldigi", "line": "listening"},
	}})
	m = updated.(Model)
	assert.NotNil(t, cmd)
	require.Len(t, m.lines, 1)
	assert.Equal(t, "[fldigi] listening", m.lines[0])

	updated, _ = m.Update(busEventMsg{event: events.Event{
		Type: events.RadioInfo,
		Data: map[string]interface{}{"radio": "Icom IC-705"},
	}})
	m = updated.(Model)
	assert.Equal(t, "Icom IC-705", m.status.radio)
}

func TestConsoleLinesAreCapped(t *testing.T) {
	m, _ := newTestModel(t)
	for i := 0; i < maxConsoleLines+10; i++ {
		m.appendLine("line")
	}
	assert.Len(t, m.lines, maxConsoleLines)
}

func TestLoadStatus(t *testing.T) {
	m, a := newTestModel(t)
	require.NoError(t, a.WriteUser(config.UserProfile{Callsign: "KD2QRS", Grid: "FN20"}))
	require.NoError(t, a.WriteMode("aprs-digipeater\n"))

	msg, ok := m.loadStatus()().(statusMsg)
	require.True(t, ok)
	assert.Equal(t, "KD2QRS", msg.callsign)
	assert.Equal(t, "FN20", msg.grid)
	assert.Equal(t, "aprs-digipeater", msg.mode)
	assert.Equal(t, radio.NoRadio, msg.radio)
}

func TestBusForwardsToUpdateChannel(t *testing.T) {
	m, a := newTestModel(t)
	a.ToggleConsole()

	select {
	case msg := <-m.updateChan:
		ev, ok := msg.(busEventMsg)
		require.True(t, ok)
		assert.Equal(t, events.ConsoleVisibilityChanged, ev.event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("bus event not forwarded")
	}
}
