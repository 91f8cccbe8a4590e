package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"fvdownloader/pkg/models"

	"github.com/schollz/progressbar/v3"
)

// ProgressDisplay draws one progress bar per collection on a plain
// terminal and a status line when the collection ends
type ProgressDisplay struct {
	mu    sync.Mutex
	w     io.Writer
	bars  map[string]*collectionBar
	debug bool
}

type collectionBar struct {
	label string
	bar   *progressbar.ProgressBar
	bytes int64
}

// NewProgressDisplay creates a display writing to w. In debug mode every
// failed record is printed as it happens.
func NewProgressDisplay(w io.Writer, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		w:     w,
		bars:  make(map[string]*collectionBar),
		debug: debug,
	}
}

func (p *ProgressDisplay) CollectionStarted(req models.CollectionRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars[req.Key()] = &collectionBar{label: Truncate(req.URL, 48)}
	if p.debug {
		fmt.Fprintf(p.w, "%s %s\n", Magenta("→"), req.URL)
	}
}

func (p *ProgressDisplay) CollectionTotal(req models.CollectionRequest, info models.CollectionInfo, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cb := p.entry(req)
	cb.label = Truncate(info.String(), 48)
	if total == 0 {
		return
	}
	cb.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(cb.label),
		progressbar.OptionSetItsString("img"),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(24),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "━",
			SaucerHead:    "━",
			SaucerPadding: "─",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *ProgressDisplay) RecordFinished(req models.CollectionRequest, o models.Outcome) {
	if o.Skipped {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	cb := p.entry(req)
	cb.bytes += o.Bytes
	if cb.bar != nil {
		cb.bar.Add(1)
	}
	if o.Err != nil && p.debug {
		fmt.Fprintf(p.w, "\n%s %s #%d: %v\n", Red("✗"), cb.label, o.Record.SequenceIndex, o.Err)
	}
}

func (p *ProgressDisplay) CollectionFinished(s models.CollectionSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cb := p.entry(s.Request)
	if cb.bar != nil {
		cb.bar.Clear()
	}
	delete(p.bars, s.Request.Key())

	label := cb.label
	if s.Info != (models.CollectionInfo{}) {
		label = Truncate(s.Info.String(), 48)
	}

	line := fmt.Sprintf("\r%s %s %d/%d", StatusIcon(s.Status), label, s.Succeeded, s.Total)
	if s.Failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", s.Failed))
	}
	if s.Skipped > 0 {
		line += " • " + Yellow(fmt.Sprintf("%d skipped", s.Skipped))
	}
	if cb.bytes > 0 {
		line += " • " + FormatBytes(cb.bytes)
	}
	line += " • " + FormatDuration(s.Duration)
	if s.Total == 0 && s.Err != nil {
		line += " • " + Dim(s.Err.Error())
	}
	fmt.Fprintln(p.w, line)
}

func (p *ProgressDisplay) entry(req models.CollectionRequest) *collectionBar {
	cb, ok := p.bars[req.Key()]
	if !ok {
		cb = &collectionBar{label: Truncate(req.URL, 48)}
		p.bars[req.Key()] = cb
	}
	return cb
}

// StatusIcon returns a colored marker for a collection status
func StatusIcon(s models.CollectionStatus) string {
	switch s {
	case models.StatusDone:
		return Green("✓")
	case models.StatusPartiallyFailed:
		return Yellow("◐")
	case models.StatusCancelled:
		return Yellow("■")
	case models.StatusFailed:
		return Red("✗")
	default:
		return Dim("·")
	}
}
