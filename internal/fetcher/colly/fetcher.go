// Package collyfetcher implements blog.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/blog-archive-scraper/internal/blog"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	// Timeout bounds one request. Zero keeps colly's default.
	Timeout time.Duration
}

// Fetcher implements blog.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	// Status codes are judged by Fetch, so colly hands every response over.
	c.ParseHTTPErrorResponse = true
	// Pagination never revisits a page on purpose; the visited set lives in blog.Collector.
	c.AllowURLRevisit = true

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. Transport failures and
// non-2xx responses come back as *blog.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (blog.Page, error) {
	var (
		page     blog.Page
		fetchErr error
	)
	collector := f.buildCollector(&page, &fetchErr)

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		if ctx.Err() != nil {
			// The visit may still be running; page is not safe to read.
			return blog.Page{}, &blog.FetchError{URL: url, Err: err}
		}
		return blog.Page{}, &blog.FetchError{URL: url, StatusCode: page.StatusCode, Err: err}
	}
	if page.StatusCode < http.StatusOK || page.StatusCode >= http.StatusMultipleChoices {
		return blog.Page{}, &blog.FetchError{
			URL:        url,
			StatusCode: page.StatusCode,
			Err:        errors.New("unexpected response status"),
		}
	}
	return page, nil
}

func (f *Fetcher) buildCollector(page *blog.Page, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	// colly truncates silently at its 10 MiB default, which drops the pager link
	// at the bottom of long archive pages.
	collector.MaxBodySize = 0
	if f.cfg.Timeout > 0 {
		collector.SetRequestTimeout(f.cfg.Timeout)
	}

	f.configureCollectorHooks(collector, page, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, page *blog.Page, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*page = blog.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    cloneHeader(r.Headers),
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			page.StatusCode = r.StatusCode
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func cloneHeader(h *http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
