package progress

import (
	"errors"
	"sync"
	"testing"

	"fvdownloader/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerCountsFinishedAttempts(t *testing.T) {
	tr := NewTracker()
	req := models.CollectionRequest{URL: "https://www.firstview.com/collection_images.php?id=1"}

	tr.CollectionStarted(req)
	tr.CollectionTotal(req, models.CollectionInfo{Designer: "Gucci"}, 3)
	tr.RecordFinished(req, models.Outcome{})
	tr.RecordFinished(req, models.Outcome{Err: errors.New("404")})
	tr.RecordFinished(req, models.Outcome{Skipped: true})

	state, ok := tr.State(req)
	require.True(t, ok)
	assert.Equal(t, models.ProgressState{Completed: 2, Failed: 1, Total: 3}, state)

	tr.CollectionFinished(models.CollectionSummary{Request: req, Status: models.StatusCancelled, Total: 3})
	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, models.StatusCancelled, snap[0].Status)
	assert.Equal(t, "Gucci", snap[0].Info.Designer)
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	tr := NewTracker()
	req := models.CollectionRequest{URL: "u"}
	tr.CollectionTotal(req, models.CollectionInfo{}, 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordFinished(req, models.Outcome{})
		}()
	}
	wg.Wait()

	state, _ := tr.State(req)
	assert.Equal(t, 100, state.Completed)
}

func TestTrackerSeparatesDuplicateRequests(t *testing.T) {
	tr := NewTracker()
	first := models.CollectionRequest{URL: "u", Position: 0}
	second := models.CollectionRequest{URL: "u", Position: 1}

	tr.CollectionStarted(first)
	tr.CollectionTotal(first, models.CollectionInfo{}, 2)
	tr.RecordFinished(first, models.Outcome{})
	tr.CollectionStarted(second)
	tr.CollectionTotal(second, models.CollectionInfo{}, 2)
	tr.RecordFinished(first, models.Outcome{})
	tr.RecordFinished(second, models.Outcome{Err: errors.New("404")})

	a, _ := tr.State(first)
	b, _ := tr.State(second)
	assert.Equal(t, models.ProgressState{Completed: 2, Total: 2}, a)
	assert.Equal(t, models.ProgressState{Completed: 1, Failed: 1, Total: 2}, b)
	assert.Len(t, tr.Snapshot(), 2)
}

func TestTrackerUnknownCollection(t *testing.T) {
	_, ok := NewTracker().State(models.CollectionRequest{URL: "missing"})
	assert.False(t, ok)
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewTracker(), NewTracker()
	m := NewMulti(a, nil, b)
	require.Len(t, m, 2)

	req := models.CollectionRequest{URL: "u"}
	m.CollectionStarted(req)
	m.CollectionTotal(req, models.CollectionInfo{}, 1)
	m.RecordFinished(req, models.Outcome{})
	m.CollectionFinished(models.CollectionSummary{Request: req, Status: models.StatusDone, Total: 1})

	for _, tr := range []*Tracker{a, b} {
		state, ok := tr.State(req)
		require.True(t, ok)
		assert.Equal(t, 1, state.Completed)
		assert.Equal(t, models.StatusDone, tr.Snapshot()[0].Status)
	}
}
