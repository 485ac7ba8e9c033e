package fetchpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
	"github.com/JakeFAU/sitemap-article-harvester/internal/metrics"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 8

// PoolConfig controls worker fan-out and per-kind attempt timeouts.
type PoolConfig struct {
	Workers        int
	SitemapTimeout time.Duration
	ArticleTimeout time.Duration
}

// Pool fans queued tasks out to a fixed number of workers. Each worker
// fetches one task at a time, so at most Workers fetches are in flight.
type Pool struct {
	queue  harvest.Queue
	client *Client
	cfg    PoolConfig
	logger *zap.Logger
}

// NewPool creates a Pool.
func NewPool(queue harvest.Queue, client *Client, cfg PoolConfig, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:  queue,
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Workers returns the configured pool size.
func (p *Pool) Workers() int {
	return p.cfg.Workers
}

// Submit proxies to the underlying queue.
func (p *Pool) Submit(ctx context.Context, task harvest.Task) error {
	if err := p.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Close stops accepting work. Workers exit once the backlog drains.
func (p *Pool) Close() {
	p.queue.Close()
}

// Run starts all workers and blocks until the queue is closed and drained.
// Cancelling ctx does not stop dequeueing: queued tasks are still handed to
// the handler, with fetch results that report cancellation.
func (p *Pool) Run(ctx context.Context, handler harvest.ResultHandler) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id, handler)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int, handler harvest.ResultHandler) {
	drainCtx := context.WithoutCancel(ctx)
	for {
		task, err := p.queue.Dequeue(drainCtx)
		if err != nil {
			if !errors.Is(err, harvest.ErrQueueClosed) {
				p.logger.Error("queue dequeue failed", zap.Int("worker", id), zap.Error(err))
			}
			return
		}
		metrics.IncActiveWorkers()
		result := p.client.Fetch(ctx, task.Kind, task.URL, p.timeoutFor(task.Kind))
		handler.Handle(ctx, task, result)
		metrics.DecActiveWorkers()
	}
}

func (p *Pool) timeoutFor(kind harvest.TaskKind) time.Duration {
	if kind == harvest.TaskSitemap {
		return p.cfg.SitemapTimeout
	}
	return p.cfg.ArticleTimeout
}
