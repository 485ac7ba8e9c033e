package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-article-harvester/internal/config"
	"github.com/JakeFAU/sitemap-article-harvester/internal/extractor"
	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
	memsink "github.com/JakeFAU/sitemap-article-harvester/internal/sink/memory"
)

const articleBody = `<html><body>
<header><h1 class="ArticleHeader_title">%s</h1>
<address id="byline"><a href="/author/jane">Jane Roe</a></address>
<time datetime="2019-05-01T12:00:00Z">May 1</time></header>
<section class="ArticleContent_body"><p>First paragraph.</p><p>Second paragraph.</p></section>
</body></html>`

func testConfig() config.Config {
	return config.Config{
		Harvest: config.HarvestConfig{
			Concurrency:     2,
			UserAgent:       "harvester-test",
			SitemapTemplate: "https://example.com/sitemaps/sitemap_YEAR_MONTH.xml",
			StartYear:       2019,
			EndYear:         2019,
			MediaSegments:   []string{"photo", "video"},
		},
		HTTP: config.HTTPConfig{
			TimeoutSeconds:        5,
			SitemapTimeoutSeconds: 5,
			MaxAttempts:           2,
			BackoffInitialMs:      1,
			BackoffMaxMs:          5,
		},
		Extractor: extractor.DefaultSelectors(),
		Sink:      config.SinkConfig{Kind: config.SinkMemory, TimeoutSeconds: 5},
	}
}

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>%[1]s/a/one</loc></url>
<url><loc>%[1]s/a/one/</loc></url>
<url><loc>%[1]s/photo/gallery</loc></url>
<url><loc>%[1]s/a/missing</loc></url>
</urlset>`, "http://"+r.Host)
	})
	mux.HandleFunc("/a/one", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, articleBody, "Headline One")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewWithMemorySink(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	require.IsType(t, &memsink.Sink{}, a.Sink())
	require.NotNil(t, a.Logger())
	require.Equal(t, 2, a.Config().Harvest.Concurrency)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Sink.Kind = "kafka"
	_, err := New(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.ErrorContains(t, err, "invalid config")
}

func TestNewPostgresSinkBadDSN(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Sink.Kind = config.SinkPostgres
	cfg.Sink.Postgres.DSN = "://not a dsn"
	_, err := New(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.ErrorContains(t, err, "init postgres sink")
}

func TestSitemapRefs(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	refs, err := a.SitemapRefs()
	require.NoError(t, err)
	require.Len(t, refs, 12)
	require.Equal(t, "https://example.com/sitemaps/sitemap_2019_01.xml", refs[0].URL)
	require.Equal(t, "https://example.com/sitemaps/sitemap_2019_12.xml", refs[11].URL)

	cfg := testConfig()
	cfg.Harvest.SitemapURLs = []string{"https://example.com/b.xml", "https://example.com/a.xml"}
	a, err = New(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	refs, err = a.SitemapRefs()
	require.NoError(t, err)
	require.Equal(t, []harvest.SitemapRef{{URL: "https://example.com/b.xml"}, {URL: "https://example.com/a.xml"}}, refs)
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	srv := newSiteServer(t)
	cfg := testConfig()
	cfg.Harvest.SitemapURLs = []string{srv.URL + "/sitemap.xml", srv.URL + "/gone.xml"}

	a, err := New(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	refs, err := a.SitemapRefs()
	require.NoError(t, err)
	orch, err := a.NewOrchestrator()
	require.NoError(t, err)

	summary, err := orch.Run(context.Background(), refs)
	require.NoError(t, err)

	require.NotEmpty(t, summary.RunID)
	require.EqualValues(t, 1, summary.SitemapsProcessed)
	require.EqualValues(t, 1, summary.SitemapsFailed)
	require.EqualValues(t, 3, summary.ArticlesDiscovered)
	require.EqualValues(t, 1, summary.DuplicatesIgnored)
	require.EqualValues(t, 1, summary.Succeeded)
	require.EqualValues(t, 1, summary.Skipped)
	require.EqualValues(t, 1, summary.Failed)
	require.Equal(t, summary.ArticlesDiscovered, summary.Succeeded+summary.Skipped+summary.Failed)

	records := a.Sink().(*memsink.Sink).ByURL()
	require.Len(t, records, 3)

	one := records[srv.URL+"/a/one"]
	require.Equal(t, harvest.StatusSuccess, one.Status.Kind)
	require.Equal(t, "Headline One", *one.Title)
	require.Equal(t, "Jane Roe", *one.Author)
	require.Equal(t, []string{"First paragraph.", "Second paragraph."}, one.Paragraphs)

	missing := records[srv.URL+"/a/missing"]
	require.Equal(t, harvest.StatusFailed, missing.Status.Kind)
	require.Equal(t, harvest.ReasonHTTPStatus, missing.Status.Reason)

	require.Equal(t, harvest.ReasonMediaOnly, records[srv.URL+"/photo/gallery"].Status.Reason)
}

func TestJSONLSinkWritesRecords(t *testing.T) {
	t.Parallel()

	srv := newSiteServer(t)
	path := filepath.Join(t.TempDir(), "out", "articles.jsonl")
	cfg := testConfig()
	cfg.Harvest.SitemapURLs = []string{srv.URL + "/sitemap.xml"}
	cfg.Sink = config.SinkConfig{Kind: config.SinkJSONL, Path: path, TimeoutSeconds: 5}

	a, err := New(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	refs, err := a.SitemapRefs()
	require.NoError(t, err)
	orch, err := a.NewOrchestrator()
	require.NoError(t, err)
	_, err = orch.Run(context.Background(), refs)
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		require.Contains(t, rec, "status")
		lines++
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, 3, lines)
}

func TestSitemapTimeoutOutlastsArticleTimeout(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/slow-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1500 * time.Millisecond)
		fmt.Fprintf(w, `<urlset><url><loc>http://%s/a/one</loc></url></urlset>`, r.Host)
	})
	mux.HandleFunc("/a/one", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, articleBody, "Headline One")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.HTTP.TimeoutSeconds = 1
	cfg.HTTP.SitemapTimeoutSeconds = 3
	cfg.HTTP.MaxAttempts = 1
	cfg.Harvest.SitemapURLs = []string{srv.URL + "/slow-sitemap.xml"}

	a, err := New(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	orch, err := a.NewOrchestrator()
	require.NoError(t, err)
	refs, err := a.SitemapRefs()
	require.NoError(t, err)

	summary, err := orch.Run(context.Background(), refs)
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.SitemapsProcessed)
	require.EqualValues(t, 1, summary.Succeeded)
}

// Not parallel: enabling tracing replaces the global tracer provider.
func TestStdoutSpanExporterRecordsRun(t *testing.T) {
	srv := newSiteServer(t)
	cfg := testConfig()
	cfg.Harvest.SitemapURLs = []string{srv.URL + "/sitemap.xml"}
	cfg.Tracing = config.TracingConfig{
		Enabled:     true,
		ServiceName: "harvester-test",
		SampleRatio: 1,
		Exporter:    "stdout",
	}

	var spans bytes.Buffer
	a, err := New(context.Background(), cfg, WithLogger(zap.NewNop()), WithSpanWriter(&spans))
	require.NoError(t, err)

	refs, err := a.SitemapRefs()
	require.NoError(t, err)
	orch, err := a.NewOrchestrator()
	require.NoError(t, err)
	_, err = orch.Run(context.Background(), refs)
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))

	require.Contains(t, spans.String(), `"Name":"pipeline.run"`)
	require.Contains(t, spans.String(), `"Name":"fetchpool.fetch"`)
}

func TestUnknownSpanExporterRejected(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Tracing = config.TracingConfig{Enabled: true, SampleRatio: 1, Exporter: "jaeger"}
	_, err := New(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.ErrorContains(t, err, "tracing.exporter")
}
