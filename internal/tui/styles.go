package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor  = lipgloss.Color("39")
	mutedColor   = lipgloss.Color("245")
	errorColor   = lipgloss.Color("196")
	successColor = lipgloss.Color("42")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor)
	valueStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(errorColor)
	okStyle    = lipgloss.NewStyle().Foreground(successColor)

	consoleStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor)
)
