// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-article-harvester/internal/classifier"
	"github.com/JakeFAU/sitemap-article-harvester/internal/clock/system"
	"github.com/JakeFAU/sitemap-article-harvester/internal/config"
	"github.com/JakeFAU/sitemap-article-harvester/internal/dedup"
	"github.com/JakeFAU/sitemap-article-harvester/internal/extractor"
	collyfetcher "github.com/JakeFAU/sitemap-article-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/sitemap-article-harvester/internal/fetchpool"
	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
	"github.com/JakeFAU/sitemap-article-harvester/internal/hash/sha256"
	"github.com/JakeFAU/sitemap-article-harvester/internal/id/uuid"
	"github.com/JakeFAU/sitemap-article-harvester/internal/logging"
	"github.com/JakeFAU/sitemap-article-harvester/internal/pipeline"
	"github.com/JakeFAU/sitemap-article-harvester/internal/policy/ratelimit"
	memqueue "github.com/JakeFAU/sitemap-article-harvester/internal/queue/memory"
	"github.com/JakeFAU/sitemap-article-harvester/internal/sink/gcs"
	"github.com/JakeFAU/sitemap-article-harvester/internal/sink/jsonl"
	memsink "github.com/JakeFAU/sitemap-article-harvester/internal/sink/memory"
	"github.com/JakeFAU/sitemap-article-harvester/internal/sink/mongo"
	"github.com/JakeFAU/sitemap-article-harvester/internal/sink/postgres"
	"github.com/JakeFAU/sitemap-article-harvester/internal/sink/pubsub"
	"github.com/JakeFAU/sitemap-article-harvester/internal/sitemap"
	"github.com/JakeFAU/sitemap-article-harvester/internal/telemetry"
)

// App holds the shared, long-lived services for one process: logger, sink,
// politeness limiter, fetcher and tracer. Per-run state (queue, dedup store,
// orchestrator) is built fresh by NewOrchestrator.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	sink    harvest.Sink
	fetcher harvest.Fetcher
	limiter harvest.Limiter
	tracer  *sdktrace.TracerProvider
	spans   io.Writer
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// Option customizes App construction.
type Option func(*App)

// WithLogger supplies a logger instead of building one from config.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithSink supplies a sink instead of building one from config.
func WithSink(sink harvest.Sink) Option {
	return func(a *App) { a.sink = sink }
}

// WithFetcher supplies the single-attempt fetcher.
func WithFetcher(fetcher harvest.Fetcher) Option {
	return func(a *App) { a.fetcher = fetcher }
}

// WithSpanWriter redirects the stdout span exporter, which defaults to stderr
// so spans never mix with the summary on stdout.
func WithSpanWriter(w io.Writer) Option {
	return func(a *App) { a.spans = w }
}

// New creates and initializes an App from cfg. It fails fast if any service
// cannot be initialized.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		logger, err := logging.NewWithLevel(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.logger = logger
	}
	a.logger.Info("initializing application services",
		zap.String("sink", cfg.Sink.Kind),
		zap.String("span_exporter", cfg.Tracing.Exporter),
	)

	if cfg.Tracing.Enabled {
		if a.spans == nil {
			a.spans = os.Stderr
		}
		exporter, err := telemetry.NewExporter(cfg.Tracing.Exporter, a.spans)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
			Exporter:    exporter,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.tracer = tp
		a.closers = append(a.closers, closer{name: "tracer", fn: tp.Shutdown})
	}

	if a.sink == nil {
		if err := a.initSink(ctx); err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
			return nil, err
		}
	}

	if a.fetcher == nil {
		a.fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:   cfg.Harvest.UserAgent,
			Timeout:     cfg.FetchTimeout(),
			MaxBodySize: cfg.Harvest.MaxBodyBytes,
		})
	}
	a.limiter = ratelimit.New(ratelimit.Config{MinDelay: cfg.PolitenessDelay()})

	a.logger.Info("application services initialized")
	return a, nil
}

// initSink builds the configured result sink and registers its shutdown.
func (a *App) initSink(ctx context.Context) error {
	cfg := a.cfg.Sink
	switch cfg.Kind {
	case config.SinkMemory:
		a.logger.Info("using in-memory sink; records are discarded at exit")
		a.sink = memsink.New()
	case config.SinkJSONL:
		s, err := jsonl.New(jsonl.Config{Path: cfg.Path})
		if err != nil {
			return fmt.Errorf("init jsonl sink: %w", err)
		}
		a.sink = s
		a.closers = append(a.closers, closer{name: "jsonl sink", fn: func(context.Context) error { return s.Close() }})
	case config.SinkPostgres:
		s, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres sink: %w", err)
		}
		a.closers = append(a.closers, closer{name: "postgres sink", fn: func(context.Context) error {
			s.Close()
			return nil
		}})
		if cfg.Postgres.EnsureSchema {
			if err := s.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure postgres schema: %w", err)
			}
		}
		a.sink = s
	case config.SinkMongo:
		s, err := mongo.New(ctx, mongo.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		if err != nil {
			return fmt.Errorf("init mongo sink: %w", err)
		}
		a.sink = s
		a.closers = append(a.closers, closer{name: "mongo sink", fn: s.Close})
	case config.SinkPubSub:
		s, err := pubsub.New(ctx, pubsub.Config{ProjectID: cfg.PubSub.ProjectID, TopicID: cfg.PubSub.TopicID})
		if err != nil {
			return fmt.Errorf("init pubsub sink: %w", err)
		}
		a.sink = s
		a.closers = append(a.closers, closer{name: "pubsub sink", fn: func(context.Context) error { return s.Close() }})
	case config.SinkGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, closer{name: "gcs client", fn: func(context.Context) error { return client.Close() }})
		s, err := gcs.New(client, sha256.New(), gcs.Config{Bucket: cfg.GCS.Bucket, Prefix: cfg.GCS.Prefix})
		if err != nil {
			return fmt.Errorf("init gcs sink: %w", err)
		}
		a.sink = s
	default:
		return fmt.Errorf("unknown sink kind: %s", cfg.Kind)
	}
	return nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Sink exposes the configured result sink.
func (a *App) Sink() harvest.Sink {
	return a.sink
}

// SitemapRefs resolves the sitemaps to harvest. An explicit URL list wins over
// the template.
func (a *App) SitemapRefs() ([]harvest.SitemapRef, error) {
	if len(a.cfg.Harvest.SitemapURLs) > 0 {
		return sitemap.FromList(a.cfg.Harvest.SitemapURLs), nil
	}
	refs, err := sitemap.Generate(a.cfg.Harvest.SitemapTemplate, a.cfg.Harvest.StartYear, a.cfg.Harvest.EndYear)
	if err != nil {
		return nil, fmt.Errorf("generate sitemaps: %w", err)
	}
	return refs, nil
}

// NewOrchestrator wires a fresh single-use run over the shared services.
func (a *App) NewOrchestrator() (*pipeline.Orchestrator, error) {
	policy := fetchpool.NewExponentialRetryPolicy(fetchpool.RetryConfig{
		MaxAttempts: a.cfg.HTTP.MaxAttempts,
		BaseDelay:   a.cfg.BackoffInitial(),
		MaxDelay:    a.cfg.BackoffMax(),
		NoBackoff:   a.cfg.BackoffInitial() == 0,
	})
	client := fetchpool.NewClient(a.fetcher, a.limiter, policy, a.logger)
	pool := fetchpool.NewPool(memqueue.NewQueue(a.cfg.Harvest.Concurrency*4), client, fetchpool.PoolConfig{
		Workers:        a.cfg.Harvest.Concurrency,
		SitemapTimeout: a.cfg.SitemapTimeout(),
		ArticleTimeout: a.cfg.ArticleTimeout(),
	}, a.logger)

	orch, err := pipeline.New(pipeline.Deps{
		Pool:       pool,
		Dedup:      dedup.New(),
		Classifier: classifier.New(a.cfg.Harvest.MediaSegments),
		Extractor:  extractor.New(extractor.NewCSSStrategy(a.cfg.Extractor)),
		Sink:       a.sink,
		Clock:      system.New(),
		IDs:        uuid.New(),
	}, pipeline.Config{SinkTimeout: a.cfg.SinkTimeout()}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	return orch, nil
}

// Close shuts down services in reverse order of construction and flushes the
// logger. It is called by a Cobra hook after the command finishes.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	// Sync on stderr/stdout commonly fails with ENOTTY; best effort.
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
