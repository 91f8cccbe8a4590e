package tui

import (
	"time"

	"fvdownloader/pkg/models"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Log levels shown in the log panel
const (
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarn    = "WARN"
	LevelError   = "ERROR"
)

const maxLogMessages = 50

// CollectionItem is the on-screen state of one collection
type CollectionItem struct {
	URL       string
	Info      models.CollectionInfo
	Status    models.CollectionStatus
	State     models.ProgressState
	Bytes     int64
	StartTime time.Time
	Duration  time.Duration
	Err       error
}

// Label returns the collection name, or its URL before the first page loads
func (c *CollectionItem) Label() string {
	if c.Info != (models.CollectionInfo{}) {
		return c.Info.String()
	}
	return c.URL
}

// Percent returns the finished share of the collection's records
func (c *CollectionItem) Percent() float64 {
	if c.State.Total == 0 {
		if c.Status.Terminal() {
			return 1
		}
		return 0
	}
	return float64(c.State.Completed) / float64(c.State.Total)
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
}

// Model is the bubbletea model of a batch run. It is only touched from the
// program goroutine.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	collections map[string]*CollectionItem
	order       []string

	imagesSaved  int
	imagesFailed int
	bytesSaved   int64
	startTime    time.Time

	width       int
	height      int
	showHelp    bool
	finished    bool
	logMessages []LogMessage

	// onQuit runs once when the user asks to quit
	onQuit func()
}

// NewModel creates a new TUI model
func NewModel(onQuit func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	bar := progress.New(progress.WithGradient(string(accentDeep), string(accent)))
	bar.Width = 30

	return Model{
		spinner:     s,
		bar:         bar,
		collections: make(map[string]*CollectionItem),
		startTime:   time.Now(),
		onQuit:      onQuit,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m *Model) item(req models.CollectionRequest) *CollectionItem {
	key := req.Key()
	c, ok := m.collections[key]
	if !ok {
		c = &CollectionItem{URL: req.URL, Status: models.StatusPending, StartTime: time.Now()}
		m.collections[key] = c
		m.order = append(m.order, key)
	}
	return c
}

// StartCollection marks a collection as paginating
func (m *Model) StartCollection(req models.CollectionRequest) {
	c := m.item(req)
	c.Status = models.StatusPaginating
	c.StartTime = time.Now()
	m.AddLogMessage(LevelInfo, "Loading "+req.URL)
}

// SetTotal records what pagination found
func (m *Model) SetTotal(req models.CollectionRequest, info models.CollectionInfo, total int) {
	c := m.item(req)
	c.Info = info
	c.Status = models.StatusFetching
	c.State.Total = total
}

// FinishRecord counts one attempted record
func (m *Model) FinishRecord(req models.CollectionRequest, o models.Outcome) {
	if o.Skipped {
		return
	}
	c := m.item(req)
	c.State.Completed++
	if o.Err != nil {
		c.State.Failed++
		m.imagesFailed++
		m.AddLogMessage(LevelError, c.Label()+": "+o.Err.Error())
		return
	}
	c.Bytes += o.Bytes
	m.imagesSaved++
	m.bytesSaved += o.Bytes
}

// FinishCollection applies a collection's final summary
func (m *Model) FinishCollection(s models.CollectionSummary) {
	c := m.item(s.Request)
	c.Info = s.Info
	c.Status = s.Status
	c.State.Total = s.Total
	c.Duration = s.Duration
	c.Err = s.Err

	switch s.Status {
	case models.StatusDone:
		m.AddLogMessage(LevelSuccess, "Finished "+c.Label())
	case models.StatusFailed:
		msg := "Failed " + c.Label()
		if s.Err != nil {
			msg += ": " + s.Err.Error()
		}
		m.AddLogMessage(LevelError, msg)
	default:
		m.AddLogMessage(LevelWarn, string(s.Status)+" "+c.Label())
	}
}

// AddLogMessage adds a log message, keeping the most recent ones
func (m *Model) AddLogMessage(level, message string) {
	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
	})
	if len(m.logMessages) > maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-maxLogMessages:]
	}
}

// Collections returns the items in the order they were first seen
func (m *Model) Collections() []*CollectionItem {
	out := make([]*CollectionItem, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.collections[key])
	}
	return out
}

// Overall returns finished and total records across all collections
func (m *Model) Overall() (completed, total int) {
	for _, c := range m.collections {
		completed += c.State.Completed
		total += c.State.Total
	}
	return completed, total
}
