package tui

import (
	"time"

	"fvdownloader/pkg/models"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// CollectionStartedMsg is sent when a collection job begins
type CollectionStartedMsg struct {
	Request models.CollectionRequest
}

// CollectionTotalMsg is sent once pagination has counted a collection
type CollectionTotalMsg struct {
	Request models.CollectionRequest
	Info    models.CollectionInfo
	Total   int
}

// RecordFinishedMsg is sent for every attempted record
type RecordFinishedMsg struct {
	Request models.CollectionRequest
	Outcome models.Outcome
}

// CollectionFinishedMsg carries a collection's final summary
type CollectionFinishedMsg struct {
	Summary models.CollectionSummary
}

// BatchDoneMsg is sent when every collection has finished
type BatchDoneMsg struct{}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to refresh elapsed times
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.finished {
			return m, nil
		}
		return m, tickCmd()

	case CollectionStartedMsg:
		m.StartCollection(msg.Request)
		return m, nil

	case CollectionTotalMsg:
		m.SetTotal(msg.Request, msg.Info, msg.Total)
		return m, nil

	case RecordFinishedMsg:
		m.FinishRecord(msg.Request, msg.Outcome)
		return m, nil

	case CollectionFinishedMsg:
		m.FinishCollection(msg.Summary)
		return m, nil

	case BatchDoneMsg:
		m.finished = true
		return m, tea.Quit

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
			m.onQuit = nil
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/2, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
