package pipeline

import (
	"sync/atomic"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

// tally holds run counters. Workers update it concurrently.
type tally struct {
	sitemapsProcessed  atomic.Int64
	sitemapsFailed     atomic.Int64
	articlesDiscovered atomic.Int64
	duplicatesIgnored  atomic.Int64
	articlesFetched    atomic.Int64
	succeeded          atomic.Int64
	partial            atomic.Int64
	skipped            atomic.Int64
	failed             atomic.Int64
	sinkErrors         atomic.Int64
}

// terminal counts one record. Partial extractions also count as succeeded.
func (t *tally) terminal(kind harvest.StatusKind) {
	switch kind {
	case harvest.StatusSuccess:
		t.succeeded.Add(1)
	case harvest.StatusPartial:
		t.succeeded.Add(1)
		t.partial.Add(1)
	case harvest.StatusSkipped:
		t.skipped.Add(1)
	default:
		t.failed.Add(1)
	}
}

func (t *tally) fill(s *harvest.RunSummary) {
	s.SitemapsProcessed = t.sitemapsProcessed.Load()
	s.SitemapsFailed = t.sitemapsFailed.Load()
	s.ArticlesDiscovered = t.articlesDiscovered.Load()
	s.DuplicatesIgnored = t.duplicatesIgnored.Load()
	s.ArticlesFetched = t.articlesFetched.Load()
	s.Succeeded = t.succeeded.Load()
	s.PartialExtractions = t.partial.Load()
	s.Skipped = t.skipped.Load()
	s.Failed = t.failed.Load()
	s.SinkErrors = t.sinkErrors.Load()
}
