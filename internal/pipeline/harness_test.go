package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitemap-article-harvester/internal/classifier"
	"github.com/JakeFAU/sitemap-article-harvester/internal/dedup"
	"github.com/JakeFAU/sitemap-article-harvester/internal/extractor"
	"github.com/JakeFAU/sitemap-article-harvester/internal/fetchpool"
	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
	memqueue "github.com/JakeFAU/sitemap-article-harvester/internal/queue/memory"
)

type page struct {
	status int
	body   string
}

// fakeSite serves scripted pages and counts fetches per URL. The last page
// in a script repeats; unknown URLs return 404.
type fakeSite struct {
	mu       sync.Mutex
	pages    map[string][]page
	calls    map[string]int
	inflight int
	peak     int
	onFetch  func(url string)
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages: make(map[string][]page),
		calls: make(map[string]int),
	}
}

func (s *fakeSite) serve(url string, pages ...page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = pages
}

func (s *fakeSite) Fetch(ctx context.Context, url string) (harvest.FetchResponse, error) {
	s.mu.Lock()
	n := s.calls[url]
	s.calls[url]++
	s.inflight++
	if s.inflight > s.peak {
		s.peak = s.inflight
	}
	script := s.pages[url]
	hook := s.onFetch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	if hook != nil {
		hook(url)
	}
	if err := ctx.Err(); err != nil {
		return harvest.FetchResponse{}, err
	}
	if len(script) == 0 {
		return harvest.FetchResponse{URL: url, StatusCode: 404}, nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	p := script[n]
	return harvest.FetchResponse{URL: url, StatusCode: p.status, Body: []byte(p.body)}, nil
}

func (s *fakeSite) callsFor(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

func (s *fakeSite) peakInflight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time {
	return c.now
}

type fakeIDGen struct {
	id  string
	err error
}

func (g fakeIDGen) NewID() (string, error) {
	return g.id, g.err
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSink) Emit(context.Context, harvest.ArticleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("sink unavailable")
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newOrchestrator(t *testing.T, fetcher harvest.Fetcher, sink harvest.Sink, workers int) *Orchestrator {
	t.Helper()

	policy := fetchpool.NewExponentialRetryPolicy(fetchpool.RetryConfig{MaxAttempts: 3, NoBackoff: true})
	client := fetchpool.NewClient(fetcher, nil, policy, nil)
	pool := fetchpool.NewPool(memqueue.NewQueue(0), client, fetchpool.PoolConfig{
		Workers:        workers,
		SitemapTimeout: time.Second,
		ArticleTimeout: time.Second,
	}, nil)

	orch, err := New(Deps{
		Pool:       pool,
		Dedup:      dedup.New(),
		Classifier: classifier.New(nil),
		Extractor:  extractor.New(nil),
		Sink:       sink,
		Clock:      fakeClock{now: testNow},
		IDs:        fakeIDGen{id: "run-1"},
	}, Config{SinkTimeout: time.Second}, nil)
	require.NoError(t, err)
	return orch
}

func sitemapXML(urls ...string) page {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, u := range urls {
		fmt.Fprintf(&b, "  <url><loc>%s</loc></url>\n", u)
	}
	b.WriteString("</urlset>\n")
	return page{status: 200, body: b.String()}
}

func articleHTML(title string) page {
	return page{status: 200, body: fmt.Sprintf(`<html><body>
<header>
<h1 class="ArticleHeader_title">%s</h1>
<address id="byline"><a href="/a">Reporter</a></address>
<time datetime="2019-05-01T00:00:00Z">May 1</time>
</header>
<section class="ArticleContent_body"><p>One.</p><blockquote><p>Two.</p></blockquote></section>
</body></html>`, title)}
}

func refs(urls ...string) []harvest.SitemapRef {
	out := make([]harvest.SitemapRef, 0, len(urls))
	for _, u := range urls {
		out = append(out, harvest.SitemapRef{URL: u})
	}
	return out
}
