// Package collyfetcher implements the enrichment PageFetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/propertyhub/newsfeed/internal/ingest"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Headers   http.Header
}

// Fetcher executes single-page GETs for meta-tag enrichment. Redirects are
// followed and the final URL is always reported; non-HTML responses are
// aborted after the headers so image or PDF targets never buffer a body.
type Fetcher struct {
	cfg  Config
	base *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false), colly.IgnoreRobotsTxt())
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, base: c}
}

// fetchResult is the single immutable handoff from the collector callbacks
// to the caller. Exactly one is ever sent per Fetch.
type fetchResult struct {
	result ingest.PageResult
	err    error
}

// Fetch executes a single HTTP GET. Transport errors and non-2xx statuses
// come back as errors; a non-HTML content type is not an error and yields a
// result with a nil body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (ingest.PageResult, error) {
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	// The callbacks run inside the Visit goroutine; they never share mutable
	// state with the caller. Each builds a complete fetchResult and hands it
	// over the buffered channel, with the Once keeping the first outcome:
	// the abort after headers makes colly fire OnError afterwards, and that
	// late error must not override the already-decided non-HTML result.
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range f.cfg.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	collector.OnResponseHeaders(func(r *colly.Response) {
		// Error statuses fall through to colly's own error path so they
		// surface as errors even when the error page is not HTML.
		if r.StatusCode >= 300 || isHTMLContentType(r.Headers.Get("Content-Type")) {
			return
		}
		send(fetchResult{result: ingest.PageResult{
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
		}})
		r.Request.Abort()
	})

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{result: ingest.PageResult{
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		res := fetchResult{err: fmt.Errorf("page fetch: %w", err)}
		if r != nil && r.Request != nil && r.Request.URL != nil {
			res.result.FinalURL = r.Request.URL.String()
			res.result.StatusCode = r.StatusCode
		}
		send(res)
	})

	go func() {
		if err := collector.Visit(rawURL); err != nil {
			send(fetchResult{err: fmt.Errorf("page fetch: %w", err)})
			return
		}
		// Visit returned without any callback deciding an outcome.
		send(fetchResult{err: errors.New("page fetch produced no result")})
	}()

	select {
	case <-ctx.Done():
		return ingest.PageResult{}, fmt.Errorf("page fetch canceled: %w", ctx.Err())
	case res := <-resultCh:
		return res.result, res.err
	}
}

func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
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
