package paginator

import (
	"context"
	"fmt"

	errs "fvdownloader/pkg/errors"
	"fvdownloader/pkg/firstview"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/models"
	"fvdownloader/pkg/retry"
)

// DefaultMaxPages bounds a single traversal
const DefaultMaxPages = 1000

// Options tunes a Paginator
type Options struct {
	// FirstIndex is the SequenceIndex of a collection's first record
	FirstIndex int
	MaxPages   int
	Retry      *retry.Config
	Logger     logger.Logger
}

// Paginator walks the listing pages of a collection
type Paginator struct {
	source PageSource
	opts   Options
}

// New creates a Paginator reading pages from source
func New(source PageSource, opts Options) *Paginator {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Paginator{source: source, opts: opts}
}

// Paginate returns a lazy sequence over the records of the collection at
// collectionURL. Nothing is fetched until the first call to Next.
func (p *Paginator) Paginate(ctx context.Context, collectionURL string) *Sequence {
	return &Sequence{
		ctx:     ctx,
		p:       p,
		nextURL: collectionURL,
		start:   collectionURL,
		index:   p.opts.FirstIndex,
		visited: make(map[string]bool),
		log:     p.opts.Logger.WithField("collection", collectionURL),
	}
}

// Collect drains a fresh sequence for collectionURL
func (p *Paginator) Collect(ctx context.Context, collectionURL string) ([]models.ImageRecord, models.CollectionInfo, error) {
	seq := p.Paginate(ctx, collectionURL)
	var records []models.ImageRecord
	for seq.Next() {
		records = append(records, seq.Record())
	}
	return records, seq.Info(), seq.Err()
}

// Metadata loads only the first page of a collection
func (p *Paginator) Metadata(ctx context.Context, collectionURL string) (*firstview.Page, error) {
	return p.fetchPage(ctx, collectionURL)
}

func (p *Paginator) fetchPage(ctx context.Context, pageURL string) (*firstview.Page, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*firstview.Page, error) {
		return p.source.FetchPage(ctx, pageURL)
	}, p.opts.Retry)
}

func (p *Paginator) fetchDetail(ctx context.Context, detailURL string) (string, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (string, error) {
		return p.source.FetchDetail(ctx, detailURL)
	}, p.opts.Retry)
}

// Sequence is a finite, non-restartable cursor over a collection's
// records, used like bufio.Scanner:
//
//	seq := pag.Paginate(ctx, url)
//	for seq.Next() {
//		rec := seq.Record()
//	}
//	if err := seq.Err(); err != nil { ... }
type Sequence struct {
	ctx     context.Context
	p       *Paginator
	log     logger.Logger
	start   string
	nextURL string
	visited map[string]bool
	pages   int

	info      models.CollectionInfo
	infoKnown bool
	transform *firstview.Transform
	known     map[string]string
	referer   string

	pending []firstview.Thumbnail
	index   int
	current models.ImageRecord

	err  error
	done bool
}

// Next advances to the next record, loading further pages as needed. It
// returns false at the end of the collection or on error.
func (s *Sequence) Next() bool {
	for {
		if len(s.pending) > 0 {
			thumb := s.pending[0]
			s.pending = s.pending[1:]
			full, err := s.fullURL(thumb)
			if err != nil {
				s.fail(thumb.DetailURL, err)
				s.done = true
				return false
			}
			s.current = models.NewImageRecord(s.info, full, s.index)
			s.index++
			return true
		}
		if s.done {
			return false
		}
		if !s.loadNext() {
			s.done = true
			return false
		}
	}
}

// Record returns the record Next advanced to
func (s *Sequence) Record() models.ImageRecord {
	return s.current
}

// Info returns the collection metadata. It is valid once the first page
// has loaded.
func (s *Sequence) Info() models.CollectionInfo {
	return s.info
}

// Err returns the error that ended the sequence, nil at a clean end
func (s *Sequence) Err() error {
	return s.err
}

// Pages returns how many listing pages were loaded so far
func (s *Sequence) Pages() int {
	return s.pages
}

// Referer returns the first listing page URL, sent along with image requests
func (s *Sequence) Referer() string {
	return s.referer
}

func (s *Sequence) loadNext() bool {
	if s.nextURL == "" {
		return false
	}
	if s.pages >= s.p.opts.MaxPages {
		s.fail(s.nextURL, errs.Permanent(errs.KindPageLoad, "paginate", s.nextURL,
			fmt.Errorf("page limit of %d reached", s.p.opts.MaxPages)))
		return false
	}

	pageURL := s.nextURL
	s.visited[pageURL] = true

	page, err := s.p.fetchPage(s.ctx, pageURL)
	if err != nil {
		s.fail(pageURL, err)
		return false
	}
	s.pages++

	if !s.infoKnown {
		s.info = page.Info
		s.infoKnown = true
		s.referer = pageURL
	}
	if s.transform == nil && len(page.Thumbnails) > 0 && page.Thumbnails[0].DetailURL != "" {
		if err := s.deriveTransform(page.Thumbnails[0]); err != nil {
			s.fail(pageURL, err)
			return false
		}
	}

	s.log.DebugWithFields("Loaded listing page", map[string]interface{}{
		"page":       s.pages,
		"url":        pageURL,
		"thumbnails": len(page.Thumbnails),
		"has_next":   page.NextURL != "",
	})

	s.pending = page.Thumbnails
	s.nextURL = page.NextURL
	if s.visited[s.nextURL] {
		s.log.DebugWithFields("Next link points at a visited page", map[string]interface{}{
			"url": s.nextURL,
		})
		s.nextURL = ""
	}
	return true
}

func (s *Sequence) deriveTransform(first firstview.Thumbnail) error {
	full, err := s.p.fetchDetail(s.ctx, first.DetailURL)
	if err != nil {
		return err
	}
	t := firstview.DeriveTransform(first.URL, full)
	s.transform = &t
	s.known = map[string]string{first.URL: full}
	s.log.DebugWithFields("Derived full-size URL mapping", map[string]interface{}{
		"thumbnail": first.URL,
		"full":      full,
	})
	return nil
}

// fullURL maps a thumbnail through the derived transform, loading the
// picture's detail page when the transform does not fit it
func (s *Sequence) fullURL(thumb firstview.Thumbnail) (string, error) {
	if full, ok := s.known[thumb.URL]; ok {
		return full, nil
	}
	if s.transform != nil {
		if full, ok := s.transform.Apply(thumb.URL); ok {
			return full, nil
		}
	}
	if thumb.DetailURL == "" {
		if s.transform != nil {
			s.log.WarnWithFields("No full-size URL for thumbnail, keeping it", map[string]interface{}{
				"thumbnail": thumb.URL,
			})
		}
		return thumb.URL, nil
	}

	full, err := s.p.fetchDetail(s.ctx, thumb.DetailURL)
	if err != nil {
		return "", err
	}
	s.log.DebugWithFields("Resolved full-size URL from detail page", map[string]interface{}{
		"thumbnail": thumb.URL,
		"full":      full,
	})
	return full, nil
}

func (s *Sequence) fail(pageURL string, err error) {
	s.pending = nil
	if errs.KindOf(err) == "" {
		err = errs.New(errs.KindPageLoad, "paginate", pageURL, err)
	}
	s.err = fmt.Errorf("page %d of %s: %w", s.pages+1, s.start, err)
}
