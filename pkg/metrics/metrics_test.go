package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "fvdownloader/pkg/errors"
	"fvdownloader/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserverRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	req := models.CollectionRequest{URL: "u"}

	m.CollectionStarted(req)
	m.CollectionTotal(req, models.CollectionInfo{}, 3)
	m.RecordFinished(req, models.Outcome{Bytes: 100, Duration: 10 * time.Millisecond})
	m.RecordFinished(req, models.Outcome{Bytes: 50, Duration: 10 * time.Millisecond})
	m.RecordFinished(req, models.Outcome{Err: errs.HTTPStatus(errs.KindImageFetch, "u", 404)})
	m.RecordFinished(req, models.Outcome{Skipped: true})
	m.CollectionFinished(models.CollectionSummary{Request: req, Status: models.StatusPartiallyFailed, Failed: 1})

	body := scrape(t, reg)
	assert.Contains(t, body, `fvdownloader_images_total{result="succeeded"} 2`)
	assert.Contains(t, body, `fvdownloader_images_total{result="failed"} 1`)
	assert.Contains(t, body, `fvdownloader_images_skipped_total 1`)
	assert.Contains(t, body, `fvdownloader_image_bytes_total 150`)
	assert.Contains(t, body, `fvdownloader_errors_total{kind="image_fetch"} 1`)
	assert.Contains(t, body, `fvdownloader_collections_total{status="partially_failed"} 1`)
	assert.Contains(t, body, `fvdownloader_collections_active 0`)
}

func TestCollectionErrorCountedOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	req := models.CollectionRequest{URL: "u"}

	m.CollectionStarted(req)
	m.CollectionFinished(models.CollectionSummary{
		Request: req,
		Status:  models.StatusFailed,
		Err:     errs.New(errs.KindInvalidURL, "validate", "u", errors.New("bad host")),
	})

	body := scrape(t, reg)
	assert.Contains(t, body, `fvdownloader_errors_total{kind="invalid_url"} 1`)
	assert.Contains(t, body, `fvdownloader_collections_total{status="failed"} 1`)
}
