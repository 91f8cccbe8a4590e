package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accent      = lipgloss.Color("#E8C07D")
	accentDeep  = lipgloss.Color("#B5835A")
	okGreen     = lipgloss.Color("#7BC67B")
	warnOrange  = lipgloss.Color("#F0A04B")
	errRed      = lipgloss.Color("#E06C75")
	darkBg      = lipgloss.Color("#16161D")
	panelBg     = lipgloss.Color("#1F1F28")
	dimWhite    = lipgloss.Color("#A0A0A8")
	brightWhite = lipgloss.Color("#F2F2F2")

	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	headerStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(1, 0, 0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentDeep).
			Background(panelBg).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(accent).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(brightWhite)

	nameStyle = lipgloss.NewStyle().
			Foreground(brightWhite)

	pendingStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Faint(true)

	successStyle = lipgloss.NewStyle().
			Foreground(okGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warnOrange).
			Bold(true)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)
)

// levelColor maps a log level to its color
func levelColor(level string) lipgloss.Color {
	switch level {
	case LevelError:
		return errRed
	case LevelWarn:
		return warnOrange
	case LevelSuccess:
		return okGreen
	default:
		return accent
	}
}
