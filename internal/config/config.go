// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sitemap-article-harvester/internal/extractor"
)

// EnvPrefix namespaces environment overrides, e.g. HARVESTER_HARVEST_CONCURRENCY.
const EnvPrefix = "HARVESTER"

// Sink kinds.
const (
	SinkMemory   = "memory"
	SinkJSONL    = "jsonl"
	SinkPostgres = "postgres"
	SinkMongo    = "mongo"
	SinkPubSub   = "pubsub"
	SinkGCS      = "gcs"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Harvest    HarvestConfig       `mapstructure:"harvest"`
	HTTP       HTTPConfig          `mapstructure:"http"`
	Politeness PolitenessConfig    `mapstructure:"politeness"`
	Extractor  extractor.Selectors `mapstructure:"extractor"`
	Sink       SinkConfig          `mapstructure:"sink"`
	Metrics    MetricsConfig       `mapstructure:"metrics"`
	Logging    LoggingConfig       `mapstructure:"logging"`
	Tracing    TracingConfig       `mapstructure:"tracing"`
}

// HarvestConfig governs what is harvested and how wide the worker pool is.
type HarvestConfig struct {
	Concurrency       int      `mapstructure:"concurrency"`
	UserAgent         string   `mapstructure:"user_agent"`
	SitemapTemplate   string   `mapstructure:"sitemap_template"`
	StartYear         int      `mapstructure:"start_year"`
	EndYear           int      `mapstructure:"end_year"`
	SitemapURLs       []string `mapstructure:"sitemap_urls"`
	MediaSegments     []string `mapstructure:"media_segments"`
	RunTimeoutSeconds int      `mapstructure:"run_timeout_seconds"`
	MaxBodyBytes      int      `mapstructure:"max_body_bytes"`
}

// HTTPConfig configures per-attempt timeouts and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds        int `mapstructure:"timeout_seconds"`
	SitemapTimeoutSeconds int `mapstructure:"sitemap_timeout_seconds"`
	MaxAttempts           int `mapstructure:"max_attempts"`
	BackoffInitialMs      int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs          int `mapstructure:"backoff_max_ms"`
}

// PolitenessConfig sets the minimum delay between requests to one host.
type PolitenessConfig struct {
	DelayMs int `mapstructure:"delay_ms"`
}

// SinkConfig selects and configures the record destination.
type SinkConfig struct {
	Kind           string         `mapstructure:"kind"`
	TimeoutSeconds int            `mapstructure:"timeout_seconds"`
	Path           string         `mapstructure:"path"`
	Postgres       PostgresConfig `mapstructure:"postgres"`
	Mongo          MongoConfig    `mapstructure:"mongo"`
	PubSub         PubSubConfig   `mapstructure:"pubsub"`
	GCS            GCSConfig      `mapstructure:"gcs"`
}

// PostgresConfig controls the Postgres sink.
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxConns     int32  `mapstructure:"max_conns"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// MongoConfig controls the MongoDB sink.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// PubSubConfig names the Pub/Sub topic records are published to.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// GCSConfig names the bucket records are written to.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// MetricsConfig controls the status/metrics HTTP listener. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TracingConfig controls OpenTelemetry span recording. Exporter "none" only
// propagates trace context; "stdout" writes finished spans to stderr.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Exporter    string  `mapstructure:"exporter"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	sel := extractor.DefaultSelectors()

	v.SetDefault("harvest.concurrency", 8)
	v.SetDefault("harvest.user_agent", "sitemap-article-harvester/1.0")
	v.SetDefault("harvest.sitemap_template", "https://www.theatlantic.com/sitemaps/sitemap_YEAR_MONTH.xml")
	v.SetDefault("harvest.start_year", 2010)
	v.SetDefault("harvest.end_year", 2020)
	v.SetDefault("harvest.sitemap_urls", []string{})
	v.SetDefault("harvest.media_segments", []string{"photo", "video"})
	v.SetDefault("harvest.run_timeout_seconds", 0)
	v.SetDefault("harvest.max_body_bytes", 10*1024*1024)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.sitemap_timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("politeness.delay_ms", 500)
	v.SetDefault("extractor.headline", sel.Headline)
	v.SetDefault("extractor.byline", sel.Byline)
	v.SetDefault("extractor.timestamp", sel.Timestamp)
	v.SetDefault("extractor.timestamp_attr", sel.TimestampAttr)
	v.SetDefault("extractor.container", sel.Container)
	v.SetDefault("sink.kind", SinkJSONL)
	v.SetDefault("sink.timeout_seconds", 10)
	v.SetDefault("sink.path", "data/articles.jsonl")
	v.SetDefault("sink.postgres.table", "articles")
	v.SetDefault("sink.postgres.ensure_schema", true)
	v.SetDefault("sink.mongo.collection", "articles")
	v.SetDefault("sink.gcs.prefix", "articles")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "sitemap-article-harvester")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.exporter", "none")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if len(c.Harvest.SitemapURLs) == 0 {
		if c.Harvest.SitemapTemplate == "" {
			return fmt.Errorf("harvest.sitemap_template or harvest.sitemap_urls is required")
		}
		if c.Harvest.StartYear <= 0 || c.Harvest.EndYear < c.Harvest.StartYear {
			return fmt.Errorf("harvest.start_year/end_year must form a valid range")
		}
	}
	if c.Harvest.RunTimeoutSeconds < 0 {
		return fmt.Errorf("harvest.run_timeout_seconds must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.SitemapTimeoutSeconds <= 0 {
		return fmt.Errorf("http.sitemap_timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffInitialMs < 0 || c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs {
		return fmt.Errorf("http.backoff_initial_ms must be >= 0 and <= http.backoff_max_ms")
	}
	if c.Politeness.DelayMs < 0 {
		return fmt.Errorf("politeness.delay_ms must be >= 0")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0,1]")
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("tracing.exporter must be none or stdout, got %q", c.Tracing.Exporter)
	}
	return c.Sink.validate()
}

func (s SinkConfig) validate() error {
	switch s.Kind {
	case SinkMemory:
	case SinkJSONL:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("sink.path is required for the jsonl sink")
		}
	case SinkPostgres:
		if s.Postgres.DSN == "" {
			return fmt.Errorf("sink.postgres.dsn is required for the postgres sink")
		}
	case SinkMongo:
		if s.Mongo.URI == "" || s.Mongo.Database == "" {
			return fmt.Errorf("sink.mongo.uri and sink.mongo.database are required for the mongo sink")
		}
	case SinkPubSub:
		if s.PubSub.ProjectID == "" || s.PubSub.TopicID == "" {
			return fmt.Errorf("sink.pubsub.project_id and sink.pubsub.topic_id are required for the pubsub sink")
		}
	case SinkGCS:
		if s.GCS.Bucket == "" {
			return fmt.Errorf("sink.gcs.bucket is required for the gcs sink")
		}
	default:
		return fmt.Errorf("unknown sink.kind %q", s.Kind)
	}
	if s.TimeoutSeconds <= 0 {
		return fmt.Errorf("sink.timeout_seconds must be > 0")
	}
	return nil
}

// ArticleTimeout is the per-attempt article fetch timeout.
func (c Config) ArticleTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// SitemapTimeout is the per-attempt sitemap fetch timeout.
func (c Config) SitemapTimeout() time.Duration {
	return time.Duration(c.HTTP.SitemapTimeoutSeconds) * time.Second
}

// FetchTimeout is the client-wide request ceiling: the longer of the two
// per-kind timeouts. The shorter one is enforced per attempt.
func (c Config) FetchTimeout() time.Duration {
	return max(c.ArticleTimeout(), c.SitemapTimeout())
}

// BackoffInitial is the base retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps a single retry delay.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// PolitenessDelay is the minimum spacing between requests to one host.
func (c Config) PolitenessDelay() time.Duration {
	return time.Duration(c.Politeness.DelayMs) * time.Millisecond
}

// RunTimeout bounds a whole run. Zero means unbounded.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Harvest.RunTimeoutSeconds) * time.Second
}

// SinkTimeout bounds one emit call.
func (c Config) SinkTimeout() time.Duration {
	return time.Duration(c.Sink.TimeoutSeconds) * time.Second
}
