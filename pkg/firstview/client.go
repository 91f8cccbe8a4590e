package firstview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "fvdownloader/pkg/errors"
	"fvdownloader/pkg/logger"
	"fvdownloader/pkg/ratelimit"

	"github.com/PuerkitoBio/goquery"
)

// maxImageBytes caps a single image download
const maxImageBytes = 64 << 20

// ClientConfig configures a Client
type ClientConfig struct {
	BaseURL       string
	UserAgent     string
	CookieName    string
	SessionCookie string
	Timeout       time.Duration
}

// Client talks HTTP to the catalog site
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	headers    map[string]string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a new catalog client. A nil limiter means unlimited.
func NewClient(cfg ClientConfig, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg: cfg,
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept-Language": "en-US,en;q=0.9",
		},
		limiter: limiter,
		logger:  log,
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// BaseURL returns the configured site root
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// FetchDocument loads and parses an HTML page
func (c *Client) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := c.get(ctx, pageURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8", "", errs.KindPageLoad, 0)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.New(errs.KindPageLoad, "parse", pageURL, err)
	}
	return doc, nil
}

// FetchPage loads and parses a listing page
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	doc, err := c.FetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return ParsePage(doc, pageURL), nil
}

// FetchImage downloads an image payload. referer is sent when non-empty.
func (c *Client) FetchImage(ctx context.Context, imageURL, referer string) ([]byte, error) {
	return c.get(ctx, imageURL, "image/avif,image/webp,image/apng,image/*,*/*;q=0.8", referer, errs.KindImageFetch, maxImageBytes)
}

func (c *Client) get(ctx context.Context, target, accept, referer string, kind errs.Kind, limit int64) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.New(errs.KindCancelled, "GET", target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errs.New(errs.KindInvalidURL, "GET", target, err)
	}
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
	req.Header.Set("Accept", accept)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if c.cfg.SessionCookie != "" && c.cfg.CookieName != "" {
		req.AddCookie(&http.Cookie{Name: c.cfg.CookieName, Value: c.cfg.SessionCookie})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.New(errs.KindCancelled, "GET", target, ctx.Err())
		}
		c.logger.WithError(err).DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      target,
			"duration": time.Since(start),
		})
		return nil, errs.New(kind, "GET", target, err)
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, req.Method, target, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errs.HTTPStatus(kind, target, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.New(errs.KindCancelled, "read", target, ctx.Err())
		}
		return nil, errs.New(kind, "read", target, err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, errs.New(kind, "read", target, fmt.Errorf("payload exceeds %d bytes", limit))
	}

	return body, nil
}
