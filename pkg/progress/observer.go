// Package progress defines how download progress leaves the batch runner.
//
// The runner never talks to a terminal or a metrics registry directly; it
// reports to an Observer. Implementations must be safe for concurrent use
// because collections and records finish on different goroutines.
package progress

import (
	"sync"

	"fvdownloader/pkg/models"
)

// Observer receives progress events for each collection
type Observer interface {
	CollectionStarted(req models.CollectionRequest)
	CollectionTotal(req models.CollectionRequest, info models.CollectionInfo, total int)
	RecordFinished(req models.CollectionRequest, outcome models.Outcome)
	CollectionFinished(summary models.CollectionSummary)
}

// Nop ignores every event
type Nop struct{}

func (Nop) CollectionStarted(models.CollectionRequest) {}
func (Nop) CollectionTotal(models.CollectionRequest, models.CollectionInfo, int) {}
func (Nop) RecordFinished(models.CollectionRequest, models.Outcome) {}
func (Nop) CollectionFinished(models.CollectionSummary) {}

// Multi fans every event out to a list of observers, in order
type Multi []Observer

// NewMulti drops nil observers
func NewMulti(observers ...Observer) Multi {
	m := make(Multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m Multi) CollectionStarted(req models.CollectionRequest) {
	for _, o := range m {
		o.CollectionStarted(req)
	}
}

func (m Multi) CollectionTotal(req models.CollectionRequest, info models.CollectionInfo, total int) {
	for _, o := range m {
		o.CollectionTotal(req, info, total)
	}
}

func (m Multi) RecordFinished(req models.CollectionRequest, outcome models.Outcome) {
	for _, o := range m {
		o.RecordFinished(req, outcome)
	}
}

func (m Multi) CollectionFinished(summary models.CollectionSummary) {
	for _, o := range m {
		o.CollectionFinished(summary)
	}
}

// Entry is the tracked state of one collection
type Entry struct {
	Request models.CollectionRequest
	Info    models.CollectionInfo
	Status  models.CollectionStatus
	State   models.ProgressState
}

// Tracker keeps a ProgressState per submitted collection
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewTracker creates an empty Tracker
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*Entry)}
}

func (t *Tracker) entry(req models.CollectionRequest) *Entry {
	key := req.Key()
	e, ok := t.entries[key]
	if !ok {
		e = &Entry{Request: req, Status: models.StatusPending}
		t.entries[key] = e
		t.order = append(t.order, key)
	}
	return e
}

func (t *Tracker) CollectionStarted(req models.CollectionRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(req)
	e.Status = models.StatusPaginating
	e.State = models.ProgressState{}
}

func (t *Tracker) CollectionTotal(req models.CollectionRequest, info models.CollectionInfo, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(req)
	e.Info = info
	e.Status = models.StatusFetching
	e.State.Total = total
}

func (t *Tracker) RecordFinished(req models.CollectionRequest, outcome models.Outcome) {
	if outcome.Skipped {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(req)
	e.State.Completed++
	if outcome.Err != nil {
		e.State.Failed++
	}
}

func (t *Tracker) CollectionFinished(summary models.CollectionSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(summary.Request)
	e.Info = summary.Info
	e.Status = summary.Status
	e.State.Total = summary.Total
}

// State returns the progress of one submitted collection
func (t *Tracker) State(req models.CollectionRequest) (models.ProgressState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[req.Key()]
	if !ok {
		return models.ProgressState{}, false
	}
	return e.State, true
}

// Snapshot copies every entry in the order collections were first seen
func (t *Tracker) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, *t.entries[key])
	}
	return out
}
