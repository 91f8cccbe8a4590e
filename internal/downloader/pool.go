package downloader

import (
	"bytes"
	"context"
	"image"
	"io"
	"path/filepath"
	"sync"
	"time"

	errs "fvdownloader/pkg/errors"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/models"
	"fvdownloader/pkg/retry"
)

// ImageFetcher downloads raw image payloads
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL, referer string) ([]byte, error)
}

// ImageStore writes files atomically under the output root
type ImageStore interface {
	EnsureDir(dir string) error
	Save(ctx context.Context, path string, write func(io.Writer) error) (int64, error)
}

// ImageCodec turns a payload into the canonical output format
type ImageCodec interface {
	Decode(data []byte, sourceURL string) (image.Image, string, error)
	Encode(w io.Writer, img image.Image) error
	Ext() string
}

// DownloadJob is one record queued for a worker
type DownloadJob struct {
	// Position is the record's index in the Fetch input
	Position int
	Record   models.ImageRecord
	Target   string
	Referer  string
}

// DownloadResult pairs a job with its outcome
type DownloadResult struct {
	Job     DownloadJob
	Outcome models.Outcome
}

// WorkerPool runs download jobs on a fixed number of goroutines
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context

	fetcher ImageFetcher
	store   ImageStore
	codec   ImageCodec
	retry   *retry.Config
	logger  logger.Logger

	// onFinished runs on the worker goroutine after every attempted record
	onFinished func(models.Outcome)
	// onDirFailure is told about every directory creation failure
	onDirFailure func(error)

	abortOnce sync.Once
	abort     chan struct{}
	abortErr  error
}

// NewWorkerPool creates a new download worker pool bound to ctx
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	fetcher ImageFetcher,
	store ImageStore,
	codec ImageCodec,
	retryCfg *retry.Config,
	log logger.Logger,
) *WorkerPool {
	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan DownloadJob, numWorkers*2),
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		fetcher:     fetcher,
		store:       store,
		codec:       codec,
		retry:       retryCfg,
		logger:      log,
		abort:       make(chan struct{}),
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue and waits for in-flight jobs. Results is closed
// once every worker has returned.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.logger.Debug("Worker pool stopped")
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	case <-wp.abort:
		return wp.abortErr
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

// Abort stops workers from starting new jobs; queued jobs come back skipped
func (wp *WorkerPool) Abort(err error) {
	wp.abortOnce.Do(func() {
		wp.abortErr = err
		close(wp.abort)
	})
}

// Aborted returns the abort reason, or nil
func (wp *WorkerPool) Aborted() error {
	select {
	case <-wp.abort:
		return wp.abortErr
	default:
		return nil
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		wp.resultQueue <- DownloadResult{Job: job, Outcome: wp.processJob(job, id)}
	}
}

// processJob handles a single download job
func (wp *WorkerPool) processJob(job DownloadJob, workerID int) models.Outcome {
	start := time.Now()
	outcome := models.Outcome{Record: job.Record, Path: job.Target}

	if err := wp.Aborted(); err != nil {
		outcome.Skipped = true
		outcome.Err = err
		return outcome
	}
	if wp.ctx.Err() != nil {
		outcome.Skipped = true
		return outcome
	}

	log := wp.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"index":     job.Record.SequenceIndex,
	})

	n, err := wp.download(job)
	outcome.Duration = time.Since(start)
	outcome.Bytes = n

	switch {
	case err == nil:
		log.DebugWithFields("Image saved", map[string]interface{}{
			"path":     job.Target,
			"bytes":    n,
			"duration": outcome.Duration,
		})
	case wp.ctx.Err() != nil || errs.Is(err, errs.KindCancelled):
		outcome.Skipped = true
		return outcome
	default:
		outcome.Err = err
		log.WithError(err).WarnWithFields("Image failed", map[string]interface{}{
			"url": job.Record.SourceURL,
		})
	}

	if wp.onFinished != nil {
		wp.onFinished(outcome)
	}
	return outcome
}

func (wp *WorkerPool) download(job DownloadJob) (int64, error) {
	if err := wp.store.EnsureDir(filepath.Dir(job.Target)); err != nil {
		if wp.onDirFailure != nil {
			wp.onDirFailure(err)
		}
		return 0, err
	}

	data, err := retry.DoWithResult(wp.ctx, func(ctx context.Context) ([]byte, error) {
		return wp.fetcher.FetchImage(ctx, job.Record.SourceURL, job.Referer)
	}, wp.retry)
	if err != nil {
		return 0, err
	}

	img, _, err := wp.codec.Decode(data, job.Record.SourceURL)
	if err != nil {
		return 0, err
	}

	var encoded bytes.Buffer
	if err := wp.codec.Encode(&encoded, img); err != nil {
		return 0, errs.New(errs.KindDecode, "encode", job.Record.SourceURL, err)
	}

	return wp.store.Save(wp.ctx, job.Target, func(w io.Writer) error {
		_, err := encoded.WriteTo(w)
		return err
	})
}
