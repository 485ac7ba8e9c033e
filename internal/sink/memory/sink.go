// Package memory provides an in-process Sink, used by tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

// Sink keeps every emitted record in memory.
type Sink struct {
	mu      sync.Mutex
	records []harvest.ArticleRecord
}

var _ harvest.Sink = (*Sink)(nil)

// New constructs an empty Sink.
func New() *Sink {
	return &Sink{}
}

// Emit stores a record.
func (s *Sink) Emit(_ context.Context, record harvest.ArticleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns a copy of the stored records in emission order.
func (s *Sink) Records() []harvest.ArticleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]harvest.ArticleRecord, len(s.records))
	copy(out, s.records)
	return out
}

// ByURL indexes the stored records by URL. Later records win.
func (s *Sink) ByURL() map[string]harvest.ArticleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]harvest.ArticleRecord, len(s.records))
	for _, rec := range s.records {
		out[rec.URL] = rec
	}
	return out
}

// Len reports how many records were emitted.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
