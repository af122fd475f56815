// Package collyfetcher implements funding.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

// DefaultHeaders are sent with every request unless the caller overrides them.
var DefaultHeaders = http.Header{
	"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
	"Accept-Language": {"en-US,en;q=0.9"},
	"Cache-Control":   {"no-cache"},
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Headers   http.Header
	// MaxBodySize caps the bytes read per response; zero keeps colly's default.
	MaxBodySize int
}

// Fetcher implements funding.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	now           func() time.Time
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	// Error statuses reach OnResponse so the caller can tell 403 from 429/503.
	c.ParseHTTPErrorResponse = true
	// Retries and re-discovered links revisit URLs.
	c.AllowURLRevisit = true
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	if cfg.Headers == nil {
		cfg.Headers = DefaultHeaders
	}
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		now:           time.Now,
	}
}

// Fetch executes a single HTTP GET using Colly. Non-2xx responses come back as
// pages with their status set; only transport failures are errors.
func (f *Fetcher) Fetch(ctx context.Context, request funding.FetchRequest) (funding.RawPage, error) {
	var (
		result   funding.RawPage
		fetchErr error
	)
	collector := f.buildCollector(request, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return funding.RawPage{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	request funding.FetchRequest,
	result *funding.RawPage,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	f.configureCollectorHooks(collector, request, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request funding.FetchRequest,
	result *funding.RawPage,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		page := funding.RawPage{
			URL:       r.Request.URL.String(),
			Status:    r.StatusCode,
			Body:      append([]byte(nil), r.Body...),
			FetchedAt: f.now().UTC(),
		}
		if r.Headers != nil {
			page.Headers = r.Headers.Clone()
		}
		*result = page
	})

	hooks.OnError(func(_ *colly.Response, err error) {
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

func (f *Fetcher) copyHeaders(request funding.FetchRequest, r *colly.Request) {
	for key, values := range f.cfg.Headers {
		if _, overridden := request.Headers[key]; overridden {
			continue
		}
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
	for key, values := range request.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
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
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
