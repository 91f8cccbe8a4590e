package paginator

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	errs "fvdownloader/pkg/errors"
	"fvdownloader/pkg/firstview"
	"fvdownloader/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// PageSource produces the parsed listing for a page URL
type PageSource interface {
	FetchPage(ctx context.Context, pageURL string) (*firstview.Page, error)
	// FetchDetail returns the full-size image URL shown on a picture's detail page
	FetchDetail(ctx context.Context, detailURL string) (string, error)
}

// HTTPSource fetches pages with plain HTTP requests
type HTTPSource struct {
	client *firstview.Client
}

// NewHTTPSource wraps client as a PageSource
func NewHTTPSource(client *firstview.Client) *HTTPSource {
	return &HTTPSource{client: client}
}

func (s *HTTPSource) FetchPage(ctx context.Context, pageURL string) (*firstview.Page, error) {
	return s.client.FetchPage(ctx, pageURL)
}

func (s *HTTPSource) FetchDetail(ctx context.Context, detailURL string) (string, error) {
	doc, err := s.client.FetchDocument(ctx, detailURL)
	if err != nil {
		return "", err
	}
	full, err := firstview.ParseDetail(doc, detailURL)
	if err != nil {
		return "", errs.Permanent(errs.KindPageLoad, "detail", detailURL, err)
	}
	return full, nil
}

// BrowserOptions configures a BrowserSource
type BrowserOptions struct {
	Headless   bool
	UserAgent  string
	CookieName string
	Cookie     string
	// Settle is how long to let scripts run after the body is ready
	Settle  time.Duration
	Timeout time.Duration
}

// BrowserSource renders pages in a headless Chrome and parses the
// resulting DOM
type BrowserSource struct {
	opts       BrowserOptions
	browserCtx context.Context
	cancel     context.CancelFunc
	logger     logger.Logger
}

// NewBrowserSource starts a browser. Close must be called to stop it.
func NewBrowserSource(opts BrowserOptions, log logger.Logger) (*BrowserSource, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// first Run launches the browser process
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.LogComponentStart(log, "browser", map[string]interface{}{"headless": opts.Headless})

	return &BrowserSource{
		opts:       opts,
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		logger: log,
	}, nil
}

// Close shuts the browser down
func (b *BrowserSource) Close() error {
	b.cancel()
	logger.LogComponentStop(b.logger, "browser", "closed")
	return nil
}

func (b *BrowserSource) FetchPage(ctx context.Context, pageURL string) (*firstview.Page, error) {
	doc, err := b.render(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return firstview.ParsePage(doc, pageURL), nil
}

func (b *BrowserSource) FetchDetail(ctx context.Context, detailURL string) (string, error) {
	doc, err := b.render(ctx, detailURL)
	if err != nil {
		return "", err
	}
	full, err := firstview.ParseDetail(doc, detailURL)
	if err != nil {
		return "", errs.Permanent(errs.KindPageLoad, "detail", detailURL, err)
	}
	return full, nil
}

// render opens pageURL in a fresh tab and returns its DOM once settled
func (b *BrowserSource) render(ctx context.Context, pageURL string) (*goquery.Document, error) {
	tabCtx, closeTab := chromedp.NewContext(b.browserCtx)
	defer closeTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	actions := []chromedp.Action{}
	if b.opts.Cookie != "" && b.opts.CookieName != "" {
		if u, err := url.Parse(pageURL); err == nil {
			domain := u.Hostname()
			actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
				return network.SetCookie(b.opts.CookieName, b.opts.Cookie).
					WithDomain(domain).
					WithPath("/").
					Do(ctx)
			}))
		}
	}

	var html string
	actions = append(actions,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.opts.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, errs.New(errs.KindCancelled, "render", pageURL, ctx.Err())
		}
		return nil, errs.New(errs.KindPageLoad, "render", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.New(errs.KindPageLoad, "parse", pageURL, err)
	}
	return doc, nil
}
