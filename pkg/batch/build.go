package batch

import (
	"fmt"

	"fvdownloader/internal/downloader"
	"fvdownloader/pkg/config"
	"fvdownloader/pkg/firstview"
	"fvdownloader/pkg/imaging"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/paginator"
	"fvdownloader/pkg/progress"
	"fvdownloader/pkg/ratelimit"
	"fvdownloader/pkg/retry"
	"fvdownloader/pkg/storage"
)

// Build wires a Runner from configuration. The returned close function
// releases the page source and must be called when the run is over.
func Build(cfg *config.Config, obs progress.Observer, log logger.Logger) (*Runner, func() error, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	client := NewClient(cfg, log)

	pag, closeSource, err := NewPaginator(cfg, client, log)
	if err != nil {
		return nil, nil, err
	}

	codec, err := imaging.NewCodec(cfg.Download.Format, cfg.Download.JPEGQuality)
	if err != nil {
		closeSource()
		return nil, nil, err
	}

	store, err := storage.NewManager(cfg.Output.BaseDirectory, cfg.Output.DirPermissions, cfg.Output.FilePermissions)
	if err != nil {
		closeSource()
		return nil, nil, err
	}

	retryCfg := retry.FromSettings(cfg.Retry, log.WithField("component", "retry"))

	fetcher := downloader.NewFetcher(client, store, codec, downloader.Options{
		Concurrency:    cfg.Download.ConcurrentDownloads,
		MaxDirFailures: cfg.Download.MaxDirFailures,
		Retry:          retryCfg,
		Logger:         log.WithField("component", "downloader"),
	})

	opts := Options{
		Root:                  store.Root(),
		BaseURL:               cfg.FirstView.BaseURL,
		StrictURLs:            cfg.FirstView.StrictURLs,
		ConcurrentCollections: cfg.Download.ConcurrentCollections,
		Observer:              obs,
		Logger:                log,
	}
	if cfg.Output.WriteManifest {
		opts.Manifests = store
	}
	return NewRunner(pag, fetcher, opts), closeSource, nil
}

// NewClient builds the rate-limited FirstView client shared by page
// loads and image fetches
func NewClient(cfg *config.Config, log logger.Logger) *firstview.Client {
	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
	}

	return firstview.NewClient(firstview.ClientConfig{
		BaseURL:       cfg.FirstView.BaseURL,
		UserAgent:     cfg.FirstView.UserAgent,
		CookieName:    cfg.FirstView.CookieName,
		SessionCookie: cfg.FirstView.SessionCookie,
		Timeout:       cfg.Download.Timeout,
	}, limiter, log.WithField("component", "client"))
}

// NewPaginator builds a Paginator over the configured page source. The
// close function releases the source.
func NewPaginator(cfg *config.Config, client *firstview.Client, log logger.Logger) (*paginator.Paginator, func() error, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	source, closeSource, err := NewPageSource(cfg, client, log)
	if err != nil {
		return nil, nil, err
	}

	pag := paginator.New(source, paginator.Options{
		FirstIndex: cfg.Download.FirstIndex,
		Retry:      retry.FromSettings(cfg.Retry, log.WithField("component", "retry")),
		Logger:     log.WithField("component", "paginator"),
	})
	return pag, closeSource, nil
}

// NewPageSource returns the page source selected by scraper.strategy
func NewPageSource(cfg *config.Config, client *firstview.Client, log logger.Logger) (paginator.PageSource, func() error, error) {
	switch cfg.Scraper.Strategy {
	case config.StrategyHTTP, "":
		return paginator.NewHTTPSource(client), func() error { return nil }, nil
	case config.StrategyBrowser:
		src, err := paginator.NewBrowserSource(paginator.BrowserOptions{
			Headless:   cfg.Scraper.BrowserHeadless,
			UserAgent:  cfg.FirstView.UserAgent,
			CookieName: cfg.FirstView.CookieName,
			Cookie:     cfg.FirstView.SessionCookie,
			Settle:     cfg.Scraper.BrowserWait,
			Timeout:    cfg.Scraper.PageTimeout,
		}, log.WithField("component", "browser"))
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown scraper strategy %q", cfg.Scraper.Strategy)
	}
}
