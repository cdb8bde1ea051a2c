package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Launch  key.Binding
	Console key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Launch: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "launch"),
	),
	Console: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "console"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Launch, k.Console, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
