// Package pipeline drives a harvest run: sitemaps feed the dedup gate and
// classifier, admitted articles go back through the fetch pool, and every
// admitted URL ends in exactly one record emitted to the sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-article-harvester/internal/classifier"
	"github.com/JakeFAU/sitemap-article-harvester/internal/clock/system"
	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
	"github.com/JakeFAU/sitemap-article-harvester/internal/metrics"
	"github.com/JakeFAU/sitemap-article-harvester/internal/sitemap"
	"github.com/JakeFAU/sitemap-article-harvester/internal/telemetry"
)

const defaultSinkTimeout = 10 * time.Second

// RunState is the lifecycle of one run.
type RunState int32

// Run states.
const (
	StateIdle RunState = iota
	StateRunning
	StateDraining
	StateCompleted
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// WorkPool is the bounded fetch pool shared by sitemap and article tasks.
type WorkPool interface {
	Submit(ctx context.Context, task harvest.Task) error
	Run(ctx context.Context, handler harvest.ResultHandler)
	Close()
}

// Admitter is the dedup gate.
type Admitter interface {
	Admit(key string) bool
}

// URLClassifier decides whether an article needs fetching.
type URLClassifier interface {
	Classify(rawURL string) classifier.Decision
}

// Extractor turns a fetched page into a record.
type Extractor interface {
	Extract(html []byte) harvest.ArticleRecord
}

// Deps are the collaborators of an Orchestrator. Pool, Dedup, Classifier,
// Extractor and Sink are required.
type Deps struct {
	Pool       WorkPool
	Dedup      Admitter
	Classifier URLClassifier
	Extractor  Extractor
	Sink       harvest.Sink
	Clock      harvest.Clock
	IDs        harvest.IDGenerator
}

// Config tunes the orchestrator.
type Config struct {
	SinkTimeout time.Duration
}

// Orchestrator runs a single harvest. It is not reusable.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger

	state    atomic.Int32
	mu       sync.RWMutex
	runID    string
	started  time.Time
	counts   tally
	pending  sync.WaitGroup
	sitemaps sync.WaitGroup
}

var _ harvest.ResultHandler = (*Orchestrator)(nil)

// New constructs an Orchestrator.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Pool == nil:
		return nil, errors.New("pipeline: pool is required")
	case deps.Dedup == nil:
		return nil, errors.New("pipeline: dedup store is required")
	case deps.Classifier == nil:
		return nil, errors.New("pipeline: classifier is required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case deps.Sink == nil:
		return nil, errors.New("pipeline: sink is required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger}, nil
}

// State reports the current run state.
func (o *Orchestrator) State() RunState {
	return RunState(o.state.Load())
}

// Run harvests every sitemap and blocks until all admitted articles reach a
// terminal state. Cancelling ctx stops admission of new articles; work
// already admitted still produces records. The summary is returned even when
// the run was canceled, and also together with harvest.ErrNoSitemapReachable
// when every sitemap failed.
func (o *Orchestrator) Run(ctx context.Context, refs []harvest.SitemapRef) (harvest.RunSummary, error) {
	if len(refs) == 0 {
		return harvest.RunSummary{}, harvest.ErrNoSitemaps
	}
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return harvest.RunSummary{}, harvest.ErrRunStarted
	}

	runID := ""
	if o.deps.IDs != nil {
		id, err := o.deps.IDs.NewID()
		if err != nil {
			o.state.Store(int32(StateCompleted))
			return harvest.RunSummary{}, fmt.Errorf("generate run id: %w", err)
		}
		runID = id
	}
	summary := harvest.RunSummary{RunID: runID, StartedAt: o.deps.Clock.Now()}
	o.mu.Lock()
	o.runID = runID
	o.started = summary.StartedAt
	o.mu.Unlock()
	logger := o.logger.With(zap.String("run_id", runID))
	logger.Info("run started", zap.Int("sitemaps", len(refs)))

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.run")
	span.SetAttributes(
		attribute.String("harvest.run_id", runID),
		attribute.Int("harvest.sitemaps", len(refs)),
	)
	defer span.End()

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		o.deps.Pool.Run(ctx, o)
	}()

	o.pending.Add(len(refs))
	o.sitemaps.Add(len(refs))
	for _, ref := range refs {
		task := harvest.Task{Kind: harvest.TaskSitemap, URL: ref.URL}
		if err := o.deps.Pool.Submit(context.WithoutCancel(ctx), task); err != nil {
			logger.Warn("sitemap not scheduled", zap.String("sitemap", ref.URL), zap.Error(err))
			o.counts.sitemapsFailed.Add(1)
			metrics.ObserveSitemap("not_scheduled")
			o.sitemaps.Done()
			o.pending.Done()
		}
	}

	go func() {
		o.sitemaps.Wait()
		if o.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
			logger.Info("run draining", zap.Int64("articles_discovered", o.counts.articlesDiscovered.Load()))
		}
	}()

	o.pending.Wait()
	o.deps.Pool.Close()
	<-poolDone
	o.state.Store(int32(StateCompleted))

	o.counts.fill(&summary)
	summary.FinishedAt = o.deps.Clock.Now()
	summary.Canceled = ctx.Err() != nil
	span.SetAttributes(
		attribute.Int64("harvest.articles_discovered", summary.ArticlesDiscovered),
		attribute.Int64("harvest.failed", summary.Failed),
		attribute.Bool("harvest.canceled", summary.Canceled),
	)
	logger.Info("run completed",
		zap.Int64("sitemaps_processed", summary.SitemapsProcessed),
		zap.Int64("sitemaps_failed", summary.SitemapsFailed),
		zap.Int64("articles_discovered", summary.ArticlesDiscovered),
		zap.Int64("succeeded", summary.Succeeded),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("failed", summary.Failed),
		zap.Int64("sink_errors", summary.SinkErrors),
		zap.Bool("canceled", summary.Canceled),
	)
	if summary.SitemapsProcessed == 0 && !summary.Canceled {
		logger.Error("no sitemap could be harvested", zap.Int64("sitemaps_failed", summary.SitemapsFailed))
		return summary, harvest.ErrNoSitemapReachable
	}
	return summary, nil
}

// Status reports the run state and the counters accumulated so far.
func (o *Orchestrator) Status() (string, harvest.RunSummary) {
	o.mu.RLock()
	summary := harvest.RunSummary{RunID: o.runID, StartedAt: o.started}
	o.mu.RUnlock()
	o.counts.fill(&summary)
	return o.State().String(), summary
}

func (o *Orchestrator) currentRunID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.runID
}

// Handle consumes one pooled fetch result on the worker that produced it.
func (o *Orchestrator) Handle(ctx context.Context, task harvest.Task, result harvest.FetchResult) {
	switch task.Kind {
	case harvest.TaskSitemap:
		o.handleSitemap(ctx, task, result)
	default:
		o.handleArticle(ctx, task, result)
	}
}

func (o *Orchestrator) handleSitemap(ctx context.Context, task harvest.Task, result harvest.FetchResult) {
	defer o.pending.Done()
	defer o.sitemaps.Done()

	if !result.OK() {
		o.counts.sitemapsFailed.Add(1)
		metrics.ObserveSitemap("fetch_failed")
		o.logger.Warn("sitemap fetch failed",
			zap.String("sitemap", task.URL),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.Err),
		)
		return
	}

	urls, err := sitemap.Parse(result.Body, task.URL)
	if err != nil {
		o.counts.sitemapsFailed.Add(1)
		metrics.ObserveSitemap("parse_failed")
		o.logger.Warn("sitemap skipped", zap.String("sitemap", task.URL), zap.Error(err))
		return
	}
	o.counts.sitemapsProcessed.Add(1)
	metrics.ObserveSitemap("ok")

	admitted := 0
	for i, article := range urls {
		if ctx.Err() != nil {
			o.logger.Info("admission stopped",
				zap.String("sitemap", task.URL),
				zap.Int("not_admitted", len(urls)-i),
			)
			break
		}
		if !o.deps.Dedup.Admit(article.Key) {
			o.counts.duplicatesIgnored.Add(1)
			continue
		}
		o.counts.articlesDiscovered.Add(1)
		admitted++

		if o.deps.Classifier.Classify(article.Raw) == classifier.SkipMediaOnly {
			o.finish(ctx, article, harvest.ArticleRecord{Status: harvest.Skipped(harvest.ReasonMediaOnly)})
			continue
		}

		o.pending.Add(1)
		next := harvest.Task{Kind: harvest.TaskArticle, URL: article.Raw, Article: article}
		if err := o.deps.Pool.Submit(context.WithoutCancel(ctx), next); err != nil {
			o.pending.Done()
			o.finish(ctx, article, harvest.ArticleRecord{
				Status: harvest.Failed(harvest.ReasonCanceled, err.Error()),
			})
		}
	}
	o.logger.Debug("sitemap parsed",
		zap.String("sitemap", task.URL),
		zap.Int("locs", len(urls)),
		zap.Int("admitted", admitted),
	)
}

func (o *Orchestrator) handleArticle(ctx context.Context, task harvest.Task, result harvest.FetchResult) {
	defer o.pending.Done()

	if !result.OK() {
		o.finish(ctx, task.Article, harvest.ArticleRecord{
			Status: harvest.Failed(harvest.ReasonFor(result.Err), result.Err.Error()),
		})
		return
	}
	o.counts.articlesFetched.Add(1)
	o.finish(ctx, task.Article, o.deps.Extractor.Extract(result.Body))
}

// finish stamps the record, counts it once and emits it once. Sink errors
// are logged and counted, never retried.
func (o *Orchestrator) finish(ctx context.Context, article harvest.ArticleURL, record harvest.ArticleRecord) {
	record.RunID = o.currentRunID()
	record.URL = article.Raw
	record.Key = article.Key
	record.Sitemap = article.Source
	record.FetchedAt = o.deps.Clock.Now()

	o.counts.terminal(record.Status.Kind)
	metrics.ObserveArticle(string(record.Status.Kind))

	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.SinkTimeout)
	defer cancel()
	if err := o.deps.Sink.Emit(emitCtx, record); err != nil {
		o.counts.sinkErrors.Add(1)
		metrics.ObserveSinkError()
		o.logger.Warn("sink emit failed", zap.String("url", record.URL), zap.Error(err))
	}

	o.logger.Debug("article finished",
		zap.String("url", record.URL),
		zap.String("status", string(record.Status.Kind)),
		zap.String("reason", string(record.Status.Reason)),
	)
}
