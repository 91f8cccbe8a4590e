// Package batch downloads several FirstView collections concurrently.
package batch

import (
	"context"
	"strings"
	"time"

	"fvdownloader/internal/downloader"
	errs "fvdownloader/pkg/errors"
	"fvdownloader/pkg/firstview"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/metadata"
	"fvdownloader/pkg/models"
	"fvdownloader/pkg/paginator"
	"fvdownloader/pkg/progress"

	"golang.org/x/sync/errgroup"
)

// Options configures a Runner
type Options struct {
	// Root is the output directory album folders are created under
	Root string
	// BaseURL is checked against every collection URL when StrictURLs is set
	BaseURL               string
	StrictURLs            bool
	ConcurrentCollections int
	Observer              progress.Observer
	Logger                logger.Logger
	// Manifests, when set, receives a collection.json per downloaded album
	Manifests metadata.Writer
}

// Runner turns collection URLs into files on disk
type Runner struct {
	paginator *paginator.Paginator
	fetcher   *downloader.Fetcher
	opts      Options
}

// NewRunner creates a Runner
func NewRunner(pag *paginator.Paginator, fetcher *downloader.Fetcher, opts Options) *Runner {
	if opts.ConcurrentCollections < 1 {
		opts.ConcurrentCollections = 1
	}
	if opts.Observer == nil {
		opts.Observer = progress.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Runner{paginator: pag, fetcher: fetcher, opts: opts}
}

// Run downloads every collection and returns one summary per URL, in input
// order. A failing collection never cancels its siblings.
func (r *Runner) Run(ctx context.Context, urls []string) []models.CollectionSummary {
	summaries := make([]models.CollectionSummary, len(urls))

	logger.LogComponentStart(r.opts.Logger, "batch", map[string]interface{}{
		"collections": len(urls),
		"concurrency": r.opts.ConcurrentCollections,
		"root":        r.opts.Root,
	})

	var g errgroup.Group
	g.SetLimit(r.opts.ConcurrentCollections)
	for i, u := range urls {
		g.Go(func() error {
			summaries[i] = r.runCollection(ctx, models.CollectionRequest{URL: strings.TrimSpace(u), Position: i})
			return nil
		})
	}
	_ = g.Wait()

	reason := "completed"
	if ctx.Err() != nil {
		reason = "cancelled"
	}
	logger.LogComponentStop(r.opts.Logger, "batch", reason)
	return summaries
}

func (r *Runner) runCollection(ctx context.Context, req models.CollectionRequest) (sum models.CollectionSummary) {
	start := time.Now()
	sum = models.CollectionSummary{Request: req, Status: models.StatusPending}
	log := r.opts.Logger.WithField("collection", req.URL)

	r.opts.Observer.CollectionStarted(req)
	defer func() {
		sum.Duration = time.Since(start)
		log.InfoWithFields("Collection finished", map[string]interface{}{
			"status":    sum.Status,
			"succeeded": sum.Succeeded,
			"failed":    sum.Failed,
			"skipped":   sum.Skipped,
			"duration":  sum.Duration,
		})
		r.opts.Observer.CollectionFinished(sum)
	}()

	if r.opts.StrictURLs {
		if err := firstview.ValidateCollectionURL(r.opts.BaseURL, req.URL); err != nil {
			sum.Status = models.StatusFailed
			sum.Err = err
			return sum
		}
	}

	sum.Status = models.StatusPaginating
	seq := r.paginator.Paginate(ctx, req.URL)
	var records []models.ImageRecord
	for seq.Next() {
		records = append(records, seq.Record())
	}
	sum.Info = seq.Info()
	if err := seq.Err(); err != nil {
		sum.Err = err
		sum.Total = len(records)
		if ctx.Err() != nil {
			sum.Status = models.StatusCancelled
		} else {
			sum.Status = models.StatusFailed
		}
		return sum
	}

	log.InfoWithFields("Collection paginated", map[string]interface{}{
		"collection": sum.Info.String(),
		"images":     len(records),
		"pages":      seq.Pages(),
	})
	r.opts.Observer.CollectionTotal(req, sum.Info, len(records))

	sum.Status = models.StatusFetching
	outcomes, err := r.fetcher.Fetch(ctx, downloader.Request{
		Records: records,
		Root:    r.opts.Root,
		Referer: seq.Referer(),
		OnRecord: func(o models.Outcome) {
			r.opts.Observer.RecordFinished(req, o)
		},
	})
	if err != nil {
		sum.Status = models.StatusFailed
		sum.Err = err
	}
	sum.Tally(outcomes)
	if sum.Err == nil {
		sum.Err = firstFailure(outcomes)
	}

	if r.opts.Manifests != nil && len(records) > 0 && ctx.Err() == nil {
		dir := records[0].AlbumDir(r.opts.Root)
		if _, err := metadata.FromSummary(sum, outcomes).Save(ctx, r.opts.Manifests, dir); err != nil {
			log.WithError(err).Warn("Failed to write collection manifest")
		}
	}
	return sum
}

// firstFailure returns the first record error, if any record failed
func firstFailure(outcomes []models.Outcome) error {
	for _, o := range outcomes {
		if o.Err != nil && !errs.Is(o.Err, errs.KindCancelled) {
			return o.Err
		}
	}
	return nil
}
