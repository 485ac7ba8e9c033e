// Package collyfetcher implements harvest.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	// Timeout is the client-wide ceiling for one request. Shorter per-kind
	// limits are applied through the context passed to Fetch.
	Timeout     time.Duration
	MaxBodySize int
}

// Fetcher performs one GET per call. Retries and throttling live in the
// fetch pool; error statuses are returned as responses, not errors.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

var _ harvest.Fetcher = (*Fetcher)(nil)

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	// Configure the shared backend once; clones must not mutate it.
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, url string) (harvest.FetchResponse, error) {
	var result harvest.FetchResponse
	start := time.Now()

	collector := f.baseCollector.Clone()
	// The request is built with collector.Context, so cancelling ctx aborts
	// the in-flight round trip rather than abandoning it.
	collector.Context = ctx
	collector.OnResponse(func(r *colly.Response) {
		result = harvest.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return harvest.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return harvest.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctxErr)
			}
			return harvest.FetchResponse{}, fmt.Errorf("colly visit failed: %w", err)
		}
		if result.StatusCode == 0 {
			return harvest.FetchResponse{}, fmt.Errorf("colly visit returned no response for %s", url)
		}
		return result, nil
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
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
}
