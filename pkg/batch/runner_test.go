package batch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fvdownloader/pkg/config"
	errs "fvdownloader/pkg/errors"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/metadata"
	"fvdownloader/pkg/models"
	"fvdownloader/pkg/progress"
	"fvdownloader/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite serves two collections: id=1 spans two pages [a, b] + [c],
// id=2 has no images. Any other id is a 404.
type fakeSite struct {
	srv      *httptest.Server
	requests int32
	png      []byte

	mu      sync.Mutex
	failing map[string]bool
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.RGBA{B: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	site := &fakeSite{png: buf.Bytes(), failing: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/collection_images.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("id") == "1" && q.Get("page") == "":
			fmt.Fprintf(w, `<div class="pageTitle">Loewe - Paris - Menswear - Men</div>
<div class="season">Fall / Winter 2024</div><div class="info">3 images</div>
<a href="/picture.php?id=a"><img class="picture" src="/thumbs/c1/a.jpg"></a>
<a href="/picture.php?id=b"><img class="picture" src="/thumbs/c1/b.jpg"></a>
<a href="/collection_images.php?id=1&page=2">next</a>`)
		case q.Get("id") == "1" && q.Get("page") == "2":
			fmt.Fprint(w, `<a href="/picture.php?id=c"><img class="picture" src="/thumbs/c1/c.jpg"></a>
<a class="disabled" href="#">next</a>`)
		case q.Get("id") == "2":
			fmt.Fprint(w, `<div class="pageTitle">Empty - Milan - Resort - Women</div><div class="season">Resort 2025</div>`)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/picture.php", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		fmt.Fprintf(w, `<img alt="ImageID: %s" src="/full/c1/%s.jpg">`, id, id)
	})
	mux.HandleFunc("/full/c1/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(filepath.Base(r.URL.Path), ".jpg")
		site.mu.Lock()
		fail := site.failing[name]
		site.mu.Unlock()
		if fail {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(site.png)
	})

	site.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&site.requests, 1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(site.srv.Close)
	return site
}

func (s *fakeSite) fail(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[name] = true
}

func (s *fakeSite) collection(id string) string {
	return s.srv.URL + "/collection_images.php?id=" + id
}

func testConfig(site *fakeSite, root string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.FirstView.BaseURL = site.srv.URL
	cfg.Output.BaseDirectory = root
	cfg.RateLimit.RequestsPerMinute = 0
	cfg.Download.ConcurrentDownloads = 2
	cfg.Download.Timeout = 5 * time.Second
	cfg.Retry = config.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}
	return cfg
}

func buildRunner(t *testing.T, cfg *config.Config, obs progress.Observer) *Runner {
	t.Helper()
	runner, closeFn, err := Build(cfg, obs, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { closeFn() })
	return runner
}

func albumDir(root string) string {
	return filepath.Join(root, "Loewe", "Men", "Fall Winter 2024", "Menswear")
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, rel)
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func assertNoTempFiles(t *testing.T, root string) {
	t.Helper()
	for _, f := range listFiles(t, root) {
		assert.False(t, storage.IsTempFile(f), "leftover temp file %s", f)
	}
}

func TestRunTwoPageCollection(t *testing.T) {
	site := newFakeSite(t)
	root := t.TempDir()
	tracker := progress.NewTracker()

	summaries := buildRunner(t, testConfig(site, root), tracker).Run(context.Background(), []string{site.collection("1")})
	require.Len(t, summaries, 1)

	sum := summaries[0]
	require.NoError(t, sum.Err)
	assert.Equal(t, models.StatusDone, sum.Status)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 3, sum.Succeeded)
	assert.Equal(t, "Loewe", sum.Info.Designer)

	rel := func(name string) string {
		p, _ := filepath.Rel(root, filepath.Join(albumDir(root), name))
		return p
	}
	assert.Equal(t, []string{rel("0.png"), rel("1.png"), rel("2.png")}, listFiles(t, root))

	data, err := os.ReadFile(filepath.Join(albumDir(root), "2.png"))
	require.NoError(t, err)
	_, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	state, ok := tracker.State(sum.Request)
	require.True(t, ok)
	assert.Equal(t, models.ProgressState{Completed: 3, Failed: 0, Total: 3}, state)
}

func TestRunFailingRecordIsPartialFailure(t *testing.T) {
	site := newFakeSite(t)
	site.fail("b")
	root := t.TempDir()
	tracker := progress.NewTracker()

	sum := buildRunner(t, testConfig(site, root), tracker).Run(context.Background(), []string{site.collection("1")})[0]

	assert.Equal(t, models.StatusPartiallyFailed, sum.Status)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	assert.True(t, errs.Is(sum.Err, errs.KindImageFetch))

	state, _ := tracker.State(sum.Request)
	assert.Equal(t, models.ProgressState{Completed: 3, Failed: 1, Total: 3}, state)

	_, err := os.Stat(filepath.Join(albumDir(root), "0.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(albumDir(root), "1.png"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(albumDir(root), "2.png"))
	assert.NoError(t, err)
	assertNoTempFiles(t, root)
}

func TestRunAllRecordsFailing(t *testing.T) {
	site := newFakeSite(t)
	for _, n := range []string{"a", "b", "c"} {
		site.fail(n)
	}

	sum := buildRunner(t, testConfig(site, t.TempDir()), nil).Run(context.Background(), []string{site.collection("1")})[0]
	assert.Equal(t, models.StatusFailed, sum.Status)
	assert.Equal(t, 3, sum.Failed)
}

// cancelAfterFirst cancels the run once a record has been written
type cancelAfterFirst struct {
	progress.Nop
	cancel context.CancelFunc
}

func (c cancelAfterFirst) RecordFinished(_ models.CollectionRequest, o models.Outcome) {
	if o.Succeeded() {
		c.cancel()
	}
}

func TestRunCancelAfterFirstWrite(t *testing.T) {
	site := newFakeSite(t)
	root := t.TempDir()
	cfg := testConfig(site, root)
	cfg.Download.ConcurrentDownloads = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker := progress.NewTracker()
	obs := progress.NewMulti(tracker, cancelAfterFirst{cancel: cancel})

	sum := buildRunner(t, cfg, obs).Run(ctx, []string{site.collection("1")})[0]

	assert.Equal(t, models.StatusCancelled, sum.Status)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 2, sum.Skipped)

	files := listFiles(t, root)
	require.Len(t, files, 1)
	assert.Equal(t, "0.png", filepath.Base(files[0]))

	state, _ := tracker.State(sum.Request)
	assert.Equal(t, 1, state.Completed)
}

func TestRunEmptyCollection(t *testing.T) {
	site := newFakeSite(t)
	root := t.TempDir()
	tracker := progress.NewTracker()

	sum := buildRunner(t, testConfig(site, root), tracker).Run(context.Background(), []string{site.collection("2")})[0]

	require.NoError(t, sum.Err)
	assert.Equal(t, models.StatusDone, sum.Status)
	assert.Equal(t, 0, sum.Total)
	assert.Empty(t, listFiles(t, root))

	state, ok := tracker.State(sum.Request)
	require.True(t, ok)
	assert.Equal(t, models.ProgressState{}, state)
}

func TestRunIsIdempotent(t *testing.T) {
	site := newFakeSite(t)
	root := t.TempDir()
	cfg := testConfig(site, root)

	first := buildRunner(t, cfg, nil).Run(context.Background(), []string{site.collection("1")})[0]
	require.Equal(t, models.StatusDone, first.Status)
	before, err := os.ReadFile(filepath.Join(albumDir(root), "1.png"))
	require.NoError(t, err)

	second := buildRunner(t, cfg, nil).Run(context.Background(), []string{site.collection("1")})[0]
	require.Equal(t, models.StatusDone, second.Status)
	after, err := os.ReadFile(filepath.Join(albumDir(root), "1.png"))
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Len(t, listFiles(t, root), 3)
	assertNoTempFiles(t, root)
}

func TestRunSameURLTwiceTracksEachRequest(t *testing.T) {
	site := newFakeSite(t)
	root := t.TempDir()
	tracker := progress.NewTracker()
	u := site.collection("1")

	summaries := buildRunner(t, testConfig(site, root), tracker).Run(context.Background(), []string{u, u})
	require.Len(t, summaries, 2)
	assert.Equal(t, 0, summaries[0].Request.Position)
	assert.Equal(t, 1, summaries[1].Request.Position)

	for _, sum := range summaries {
		assert.Equal(t, models.StatusDone, sum.Status)
		state, ok := tracker.State(sum.Request)
		require.True(t, ok)
		assert.Equal(t, models.ProgressState{Completed: 3, Total: 3}, state)
	}
	assert.Len(t, tracker.Snapshot(), 2)
	assert.Len(t, listFiles(t, root), 3)
	assertNoTempFiles(t, root)
}

func TestRunRejectsForeignURLWithoutTraffic(t *testing.T) {
	site := newFakeSite(t)

	sum := buildRunner(t, testConfig(site, t.TempDir()), nil).
		Run(context.Background(), []string{"https://example.org/collection_images.php?id=1"})[0]

	assert.Equal(t, models.StatusFailed, sum.Status)
	assert.True(t, errs.Is(sum.Err, errs.KindInvalidURL))
	assert.Equal(t, int32(0), atomic.LoadInt32(&site.requests))
}

func TestRunKeepsInputOrderAndIsolatesFailures(t *testing.T) {
	site := newFakeSite(t)
	root := t.TempDir()
	urls := []string{site.collection("404"), site.collection("1"), site.collection("2")}

	summaries := buildRunner(t, testConfig(site, root), nil).Run(context.Background(), urls)
	require.Len(t, summaries, 3)

	for i, u := range urls {
		assert.Equal(t, u, summaries[i].Request.URL)
	}
	assert.Equal(t, models.StatusFailed, summaries[0].Status)
	assert.True(t, errs.Is(summaries[0].Err, errs.KindPageLoad))
	assert.Equal(t, models.StatusDone, summaries[1].Status)
	assert.Equal(t, 3, summaries[1].Succeeded)
	assert.Equal(t, models.StatusDone, summaries[2].Status)
}

func TestRunWritesManifest(t *testing.T) {
	site := newFakeSite(t)
	site.fail("b")
	root := t.TempDir()
	cfg := testConfig(site, root)
	cfg.Output.WriteManifest = true

	summaries := buildRunner(t, cfg, nil).Run(context.Background(), []string{site.collection("1"), site.collection("2")})
	require.Len(t, summaries, 2)

	m, err := metadata.Load(albumDir(root))
	require.NoError(t, err)
	assert.Equal(t, site.collection("1"), m.URL)
	assert.Equal(t, models.StatusPartiallyFailed, m.Status)
	require.Len(t, m.Images, 3)
	assert.Equal(t, "0.png", m.Images[0].File)
	assert.NotEmpty(t, m.Images[1].Error)
	assert.Equal(t, site.srv.URL+"/full/c1/c.jpg", m.Images[2].Source)

	// the empty collection gets no directory at all
	_, err = os.Stat(filepath.Join(root, "Empty"))
	assert.True(t, os.IsNotExist(err))
}
