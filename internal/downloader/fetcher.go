package downloader

import (
	"context"
	"fmt"
	"sync"

	errs "fvdownloader/pkg/errors"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/models"
	"fvdownloader/pkg/retry"
)

// Options configures a Fetcher
type Options struct {
	Concurrency int
	// MaxDirFailures abandons a collection after this many directory
	// creation failures. Zero disables the cutoff.
	MaxDirFailures int
	Retry          *retry.Config
	Logger         logger.Logger
}

// Fetcher downloads the records of one collection through a WorkerPool
type Fetcher struct {
	fetcher ImageFetcher
	store   ImageStore
	codec   ImageCodec
	opts    Options
}

// NewFetcher creates a Fetcher
func NewFetcher(fetcher ImageFetcher, store ImageStore, codec ImageCodec, opts Options) *Fetcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Fetcher{fetcher: fetcher, store: store, codec: codec, opts: opts}
}

// Ext returns the file extension written by the fetcher's codec
func (f *Fetcher) Ext() string {
	return f.codec.Ext()
}

// Request describes one Fetch call
type Request struct {
	Records []models.ImageRecord
	// Root is the output root the album directories are created under
	Root    string
	Referer string
	// OnRecord runs once per attempted record, on the worker goroutine,
	// before the next job is taken. It must be safe for concurrent use.
	OnRecord func(models.Outcome)
}

// Fetch downloads every record and returns one Outcome per record in input
// order. Records never attempted because ctx was cancelled are Skipped. The
// returned error is non-nil only when the collection was abandoned after
// too many directory failures.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]models.Outcome, error) {
	outcomes := make([]models.Outcome, len(req.Records))
	if len(req.Records) == 0 {
		return outcomes, nil
	}

	pool := NewWorkerPool(ctx, f.opts.Concurrency, f.fetcher, f.store, f.codec, f.opts.Retry, f.opts.Logger)
	pool.onFinished = req.OnRecord

	var (
		mu          sync.Mutex
		dirFailures int
	)
	pool.onDirFailure = func(err error) {
		if f.opts.MaxDirFailures <= 0 {
			return
		}
		mu.Lock()
		dirFailures++
		n := dirFailures
		mu.Unlock()
		if n >= f.opts.MaxDirFailures {
			pool.Abort(errs.New(errs.KindFilesystem, "mkdir", req.Root,
				fmt.Errorf("giving up after %d directory failures: %w", n, err)))
		}
	}

	pool.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range pool.Results() {
			outcomes[res.Job.Position] = res.Outcome
		}
	}()

	submitted := 0
	ext := f.codec.Ext()
	for i, rec := range req.Records {
		job := DownloadJob{
			Position: i,
			Record:   rec,
			Target:   rec.TargetPath(req.Root, ext),
			Referer:  req.Referer,
		}
		if err := pool.Submit(job); err != nil {
			break
		}
		submitted++
	}

	pool.Stop()
	<-done

	abortErr := pool.Aborted()
	for i := submitted; i < len(req.Records); i++ {
		rec := req.Records[i]
		outcomes[i] = models.Outcome{
			Record:  rec,
			Path:    rec.TargetPath(req.Root, ext),
			Skipped: true,
			Err:     abortErr,
		}
	}

	if abortErr != nil {
		f.opts.Logger.WithError(abortErr).Error("Collection abandoned")
	}
	return outcomes, abortErr
}
