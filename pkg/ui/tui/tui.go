package tui

import (
	"fmt"

	"fvdownloader/pkg/models"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI is a full-screen progress.Observer
type TUI struct {
	program *tea.Program
}

// New creates a TUI. onQuit runs when the user quits before the batch ends
// and should cancel the run.
func New(onQuit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(onQuit)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{program: tea.NewProgram(&model, opts...)}
}

// Run blocks until the batch is done or the user quits
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Done tells the TUI the batch has finished
func (t *TUI) Done() {
	t.program.Send(BatchDoneMsg{})
}

// Log adds a line to the log panel
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.program.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (t *TUI) CollectionStarted(req models.CollectionRequest) {
	t.program.Send(CollectionStartedMsg{Request: req})
}

func (t *TUI) CollectionTotal(req models.CollectionRequest, info models.CollectionInfo, total int) {
	t.program.Send(CollectionTotalMsg{Request: req, Info: info, Total: total})
}

func (t *TUI) RecordFinished(req models.CollectionRequest, o models.Outcome) {
	t.program.Send(RecordFinishedMsg{Request: req, Outcome: o})
}

func (t *TUI) CollectionFinished(s models.CollectionSummary) {
	t.program.Send(CollectionFinishedMsg{Summary: s})
}
