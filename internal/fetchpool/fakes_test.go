package fetchpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

type scriptedStep struct {
	status int
	err    error
	block  bool
}

// fakeFetcher replays a per-URL script; the last step repeats.
type fakeFetcher struct {
	mu      sync.Mutex
	scripts map[string][]scriptedStep
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		scripts: make(map[string][]scriptedStep),
		calls:   make(map[string]int),
	}
}

func (f *fakeFetcher) script(url string, steps ...scriptedStep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[url] = steps
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (harvest.FetchResponse, error) {
	f.mu.Lock()
	n := f.calls[url]
	f.calls[url]++
	steps := f.scripts[url]
	f.mu.Unlock()

	step := scriptedStep{status: 200}
	if len(steps) > 0 {
		if n >= len(steps) {
			n = len(steps) - 1
		}
		step = steps[n]
	}
	if step.block {
		<-ctx.Done()
		return harvest.FetchResponse{}, ctx.Err()
	}
	if step.err != nil {
		return harvest.FetchResponse{}, step.err
	}
	return harvest.FetchResponse{URL: url, StatusCode: step.status, Body: []byte("body:" + url)}, nil
}

func (f *fakeFetcher) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakeLimiter struct {
	mu    sync.Mutex
	waits int
	err   error
}

func (l *fakeLimiter) Wait(context.Context, string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waits++
	return l.err
}

// slowFetcher records the peak number of concurrent calls.
type slowFetcher struct {
	mu      sync.Mutex
	current int
	peak    int
	delay   time.Duration
}

func (f *slowFetcher) Fetch(ctx context.Context, url string) (harvest.FetchResponse, error) {
	f.mu.Lock()
	f.current++
	if f.current > f.peak {
		f.peak = f.current
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.current--
		f.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return harvest.FetchResponse{}, ctx.Err()
	case <-time.After(f.delay):
	}
	return harvest.FetchResponse{URL: url, StatusCode: 200}, nil
}

type recordingHandler struct {
	mu      sync.Mutex
	results map[string]harvest.FetchResult
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{results: make(map[string]harvest.FetchResult)}
}

func (h *recordingHandler) Handle(_ context.Context, task harvest.Task, result harvest.FetchResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results[task.URL] = result
}

func (h *recordingHandler) snapshot() map[string]harvest.FetchResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]harvest.FetchResult, len(h.results))
	for k, v := range h.results {
		out[k] = v
	}
	return out
}

var errConnRefused = errors.New("connection refused")
