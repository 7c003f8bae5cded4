package tui

import "github.com/charmbracelet/lipgloss"

// Palette colors for the dashboard. Kept minimal; the dashboard is a
// read-only status view, not a full terminal multiplexer.
var (
	colorPrimary = lipgloss.Color("#7aa2f7")
	colorWaiting = lipgloss.Color("#e0af68")
	colorWorking = lipgloss.Color("#9ece6a")
	colorIdle    = lipgloss.Color("#565f89")
	colorError   = lipgloss.Color("#f7768e")
	colorText    = lipgloss.Color("#c0caf5")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Padding(0, 1)

	stageStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Padding(0, 1)

	conflictStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorIdle).
			Padding(0, 1)

	waitingStyle = lipgloss.NewStyle().Foreground(colorWaiting).Bold(true)
	workingStyle = lipgloss.NewStyle().Foreground(colorWorking)
	idleStyle    = lipgloss.NewStyle().Foreground(colorIdle)
)
