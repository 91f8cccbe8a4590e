// Package metrics exposes download progress as Prometheus metrics.
//
// Metrics:
//   - fvdownloader_collections_total{status} (Counter): finished collections by final status
//   - fvdownloader_collections_active (Gauge): collections currently paginating or fetching
//   - fvdownloader_images_total{result} (Counter): finished records, result is succeeded or failed
//   - fvdownloader_images_skipped_total (Counter): records skipped after cancellation
//   - fvdownloader_image_bytes_total (Counter): encoded bytes written
//   - fvdownloader_image_duration_seconds (Histogram): fetch, convert and save time per record
//   - fvdownloader_errors_total{kind} (Counter): record and collection errors by kind
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	errs "fvdownloader/pkg/errors"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a progress.Observer that records Prometheus metrics
type Metrics struct {
	collections   *prometheus.CounterVec
	active        prometheus.Gauge
	images        *prometheus.CounterVec
	skipped       prometheus.Counter
	bytes         prometheus.Counter
	imageDuration prometheus.Histogram
	errors        *prometheus.CounterVec
}

// New registers the metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		collections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fvdownloader_collections_total",
			Help: "Finished collections by final status",
		}, []string{"status"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "fvdownloader_collections_active",
			Help: "Collections currently being paginated or fetched",
		}),
		images: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fvdownloader_images_total",
			Help: "Finished image downloads by result",
		}, []string{"result"}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "fvdownloader_images_skipped_total",
			Help: "Images not attempted because the run was cancelled",
		}),
		bytes: f.NewCounter(prometheus.CounterOpts{
			Name: "fvdownloader_image_bytes_total",
			Help: "Bytes written to disk",
		}),
		imageDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fvdownloader_image_duration_seconds",
			Help:    "Time to fetch, convert and save one image",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fvdownloader_errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) CollectionStarted(models.CollectionRequest) {
	m.active.Inc()
}

func (m *Metrics) CollectionTotal(models.CollectionRequest, models.CollectionInfo, int) {}

func (m *Metrics) RecordFinished(_ models.CollectionRequest, o models.Outcome) {
	if o.Skipped {
		m.skipped.Inc()
		return
	}
	m.imageDuration.Observe(o.Duration.Seconds())
	if o.Err != nil {
		m.images.WithLabelValues("failed").Inc()
		m.errors.WithLabelValues(kindLabel(o.Err)).Inc()
		return
	}
	m.images.WithLabelValues("succeeded").Inc()
	m.bytes.Add(float64(o.Bytes))
}

func (m *Metrics) CollectionFinished(s models.CollectionSummary) {
	m.active.Dec()
	m.collections.WithLabelValues(string(s.Status)).Inc()
	// record failures were already counted one by one
	if s.Err != nil && s.Failed == 0 {
		m.errors.WithLabelValues(kindLabel(s.Err)).Inc()
	}
}

func kindLabel(err error) string {
	if k := errs.KindOf(err); k != "" {
		return string(k)
	}
	return "other"
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.LogComponentStart(log, "metrics", map[string]interface{}{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.LogComponentStop(log, "metrics", "shutdown")
	return nil
}
