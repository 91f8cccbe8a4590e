package tui

import (
	"fmt"
	"strings"
	"time"

	"fvdownloader/pkg/models"
	"fvdownloader/pkg/ui"

	"github.com/charmbracelet/lipgloss"
)

const header = "FIRSTVIEW · DOWNLOADER"

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		headerStyle.Render(header),
		m.renderStatsPanel(m.width - 2),
		m.renderCollectionsPanel(m.width - 2),
		m.renderLogsPanel(m.width - 2),
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q quit • ? help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	completed, total := m.Overall()
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total)
	}

	bar := m.bar
	bar.Width = clamp(width-40, 10, 60)

	line := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		statsLabelStyle.Render("Elapsed"), statsValueStyle.Render(formatClock(time.Since(m.startTime))),
		statsLabelStyle.Render("Saved"), statsValueStyle.Render(fmt.Sprintf("%d", m.imagesSaved)),
		statsLabelStyle.Render("Failed"), statsValueStyle.Render(fmt.Sprintf("%d", m.imagesFailed)),
		statsLabelStyle.Render("Size"), statsValueStyle.Render(ui.FormatBytes(m.bytesSaved)),
	)
	overall := fmt.Sprintf("%s %d/%d", bar.ViewAs(pct), completed, total)

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(" BATCH "), line, overall),
	)
}

func (m *Model) renderCollectionsPanel(width int) string {
	title := titleStyle.Render(" COLLECTIONS ")
	items := m.Collections()
	if len(items) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, pendingStyle.Render("Waiting for the first collection...")),
		)
	}

	nameWidth := clamp(width/3, 16, 50)
	bar := m.bar
	bar.Width = clamp(width-nameWidth-30, 10, 50)

	rows := []string{title}
	for _, c := range items {
		rows = append(rows, m.renderCollection(c, nameWidth, bar.ViewAs(c.Percent())))
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderCollection(c *CollectionItem, nameWidth int, bar string) string {
	name := nameStyle.Width(nameWidth).Render(ui.Truncate(c.Label(), nameWidth))
	count := fmt.Sprintf("%d/%d", c.State.Completed, c.State.Total)
	if c.State.Failed > 0 {
		count += errorStyle.Render(fmt.Sprintf(" %d✗", c.State.Failed))
	}
	return fmt.Sprintf("%s %s %s %s", m.statusMarker(c.Status), name, bar, count)
}

func (m *Model) statusMarker(s models.CollectionStatus) string {
	switch s {
	case models.StatusDone:
		return successStyle.Render("✓")
	case models.StatusPartiallyFailed, models.StatusCancelled:
		return warningStyle.Render("◐")
	case models.StatusFailed:
		return errorStyle.Render("✗")
	case models.StatusPending:
		return pendingStyle.Render("·")
	default:
		return m.spinner.View()
	}
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	visible := clamp(m.height-12-len(m.order), 3, 15)
	start := len(m.logMessages) - visible
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, entry := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(entry.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(levelColor(entry.Level)).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level))
		message := logMessageStyle.Render(ui.Truncate(entry.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = pendingStyle.Render("No messages yet")
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m *Model) renderHelp() string {
	help := `
  q / ctrl+c   stop the run (finished files are kept)
  ctrl+l       clear the log
  ?            toggle this help

  ` + successStyle.Render("✓") + ` done   ` + warningStyle.Render("◐") + ` partial or cancelled   ` + errorStyle.Render("✗") + ` failed
`
	return panelStyle.Width(m.width - 2).Render(help)
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
