// Package tui is the terminal front end: a catalog of programs to launch, a
// status header and a toggleable console pane fed from the event bus.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/emcomm-tools/et-launcher/internal/app"
	"github.com/emcomm-tools/et-launcher/internal/catalog"
	"github.com/emcomm-tools/et-launcher/pkg/events"
)

const (
	updateChannelBufferSize = 100
	maxConsoleLines         = 500
	chromeHeight            = 2 // header and help lines
)

type appItem struct {
	app catalog.App
}

func (i appItem) FilterValue() string { return i.app.Title() }
func (i appItem) Title() string       { return i.app.Title() }
func (i appItem) Description() string { return i.app.Command }

type Model struct {
	app *app.App
	log zerolog.Logger

	apps    list.Model
	console viewport.Model
	help    help.Model

	status         statusMsg
	lines          []string
	consoleVisible bool

	updateChan  chan tea.Msg
	unsubscribe func()

	width  int
	height int
}

// NewModel builds the model and subscribes it to the bus. Call Close when
// the program exits.
func NewModel(a *app.App) (Model, error) {
	cat, err := a.Catalog()
	if err != nil {
		return Model{}, err
	}

	items := make([]list.Item, 0, len(cat.Apps))
	for _, entry := range cat.Apps {
		items = append(items, appItem{app: entry})
	}
	apps := list.New(items, list.NewDefaultDelegate(), 0, 0)
	apps.Title = "EmComm Tools"
	apps.SetShowStatusBar(false)
	apps.SetShowHelp(false)

	m := Model{
		app:            a,
		log:            a.Log.With().Str("component", "tui").Logger(),
		apps:           apps,
		console:        viewport.New(0, 0),
		help:           help.New(),
		consoleVisible: a.Console.Visible(),
		updateChan:     make(chan tea.Msg, updateChannelBufferSize),
	}

	updates := m.updateChan
	m.unsubscribe = a.Bus.SubscribeAll(func(e events.Event) {
		select {
		case updates <- busEventMsg{event: e}:
		default:
		}
	})
	return m, nil
}

// Close detaches the model from the event bus.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadStatus(),
		m.waitForUpdates(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case statusMsg:
		m.status = msg
		return m, nil

	case busEventMsg:
		m.handleEvent(msg.event)
		return m, m.waitForUpdates()

	case launchResultMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Str("target", msg.target).Msg("launch failed")
			m.appendLine(errorStyle.Render(fmt.Sprintf("%s: %v", msg.target, msg.err)))
		}
		return m, nil

	case tea.KeyMsg:
		if m.apps.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Console):
			m.consoleVisible = m.app.ToggleConsole()
			m.resize()
			return m, nil
		case key.Matches(msg, keys.Refresh):
			return m, m.loadStatus()
		case key.Matches(msg, keys.Launch):
			if item, ok := m.apps.SelectedItem().(appItem); ok {
				return m, m.launch(item.app)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.apps, cmd = m.apps.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(e events.Event) {
	target, _ := e.Data["target"].(string)

	switch e.Type {
	case events.LaunchStarted:
		m.appendLine(fmt.Sprintf("%s started (pid %v)", target, e.Data["pid"]))
	case events.LaunchCompleted:
		m.appendLine(okStyle.Render(fmt.Sprintf("%s exited with status %v", target, e.Data["exitCode"])))
	case events.LaunchFailed:
		m.appendLine(errorStyle.Render(fmt.Sprintf("%s failed: %v", target, e.Data["error"])))
	case events.LaunchOutput:
		m.appendLine(fmt.Sprintf("[%s] %v", target, e.Data["line"]))
	case events.ConsoleVisibilityChanged:
		// Events can arrive out of order; the state itself is authoritative.
		m.consoleVisible = m.app.Console.Visible()
		m.resize()
	case events.RadioInfo:
		if radio, ok := e.Data["radio"].(string); ok {
			m.status.radio = radio
		}
	case events.RadioInfoError:
		m.appendLine(errorStyle.Render(fmt.Sprintf("radio: %v", e.Data["error"])))
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxConsoleLines {
		m.lines = m.lines[len(m.lines)-maxConsoleLines:]
	}
	m.console.SetContent(strings.Join(m.lines, "\n"))
	m.console.GotoBottom()
}

func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	body := m.height - chromeHeight
	if body < 1 {
		body = 1
	}

	listHeight := body
	if m.consoleVisible {
		consoleHeight := body / 3
		if consoleHeight < 3 {
			consoleHeight = 3
		}
		listHeight = body - consoleHeight
		// Border takes two rows and two columns.
		m.console.Width = m.width - 2
		m.console.Height = consoleHeight - 2
	}
	m.apps.SetSize(m.width, listHeight)
}

func (m Model) View() string {
	sections := []string{m.headerView(), m.apps.View()}
	if m.consoleVisible {
		sections = append(sections, consoleStyle.Render(m.console.View()))
	}
	sections = append(sections, m.help.View(keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	field := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return labelStyle.Render(label+" ") + valueStyle.Render(value)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render("ET Launcher"), "  ",
		field("Call", m.status.callsign), "  ",
		field("Grid", m.status.grid), "  ",
		field("Mode", m.status.mode), "  ",
		field("Radio", m.status.radio),
	)
}

func (m Model) waitForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updateChan
	}
}

func (m Model) loadStatus() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		var s statusMsg
		if u, err := a.ReadUser(); err == nil {
			s.callsign = u.Callsign
			s.grid = u.Grid
		}
		if mode, err := a.ReadMode(); err == nil {
			s.mode = strings.TrimSpace(mode)
		}
		if radio, err := a.ActiveRadio(); err == nil {
			s.radio = radio
		}
		return s
	}
}

func (m Model) launch(entry catalog.App) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		s, err := a.LaunchApp(entry)
		return launchResultMsg{target: entry.Title(), session: s, err: err}
	}
}
