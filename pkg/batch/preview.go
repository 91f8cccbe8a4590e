package batch

import (
	"context"
	"fmt"
	"sync"

	"fvdownloader/pkg/firstview"
	"fvdownloader/pkg/models"
	"fvdownloader/pkg/paginator"
)

// Preview is what a collection's first listing page tells about it
type Preview struct {
	URL  string
	Info models.CollectionInfo
	// FirstPage counts the thumbnails on the first page
	FirstPage int
	MorePages bool
}

func (p Preview) String() string {
	more := ""
	if p.MorePages {
		more = "+"
	}
	return fmt.Sprintf("%s (%d%s images)", p.Info, p.FirstPage, more)
}

// Previewer resolves collection metadata without downloading anything.
// Successful lookups are cached for the lifetime of the Previewer.
type Previewer struct {
	pag        *paginator.Paginator
	baseURL    string
	strictURLs bool

	mu    sync.Mutex
	cache map[string]Preview
}

// NewPreviewer creates a Previewer reading pages through pag
func NewPreviewer(pag *paginator.Paginator, baseURL string, strictURLs bool) *Previewer {
	return &Previewer{
		pag:        pag,
		baseURL:    baseURL,
		strictURLs: strictURLs,
		cache:      make(map[string]Preview),
	}
}

// Preview returns the metadata of the collection at url
func (p *Previewer) Preview(ctx context.Context, url string) (Preview, error) {
	p.mu.Lock()
	cached, ok := p.cache[url]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	if p.strictURLs {
		if err := firstview.ValidateCollectionURL(p.baseURL, url); err != nil {
			return Preview{}, err
		}
	}

	page, err := p.pag.Metadata(ctx, url)
	if err != nil {
		return Preview{}, err
	}

	pv := Preview{
		URL:       url,
		Info:      page.Info,
		FirstPage: len(page.Thumbnails),
		MorePages: page.NextURL != "",
	}

	p.mu.Lock()
	p.cache[url] = pv
	p.mu.Unlock()
	return pv, nil
}
