// Package extractor turns article HTML into structured records.
package extractor

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

// Field names reported in partial extraction details.
const (
	FieldTitle       = "title"
	FieldAuthor      = "author"
	FieldPublishedAt = "published_at"
	FieldParagraphs  = "paragraphs"
)

// Extractor applies a SelectorStrategy to article pages. It holds no mutable
// state, so Extract is safe for concurrent use and deterministic.
type Extractor struct {
	strategy SelectorStrategy
}

// New constructs an Extractor. A nil strategy uses the default CSS selectors.
func New(strategy SelectorStrategy) *Extractor {
	if strategy == nil {
		strategy = NewCSSStrategy(DefaultSelectors())
	}
	return &Extractor{strategy: strategy}
}

// Strategy returns the active strategy.
func (e *Extractor) Strategy() SelectorStrategy {
	return e.strategy
}

// Extract parses html into a record carrying the page fields and a status.
// Missing fields yield a partial extraction; a missing content container
// fails the record. Extract never returns an error.
func (e *Extractor) Extract(html []byte) harvest.ArticleRecord {
	var record harvest.ArticleRecord

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		record.Status = harvest.Failed(harvest.ReasonExtraction, fmt.Sprintf("%v: parse html: %v", harvest.ErrExtraction, err))
		return record
	}

	var missing []string
	if title, ok := e.strategy.Headline(doc); ok {
		record.Title = &title
	} else {
		missing = append(missing, FieldTitle)
	}
	if author, ok := e.strategy.Byline(doc); ok {
		record.Author = &author
	} else {
		missing = append(missing, FieldAuthor)
	}
	if raw, ok := e.strategy.Timestamp(doc); ok {
		if ts, err := parseTimestamp(raw); err == nil {
			record.PublishedAt = &ts
		} else {
			missing = append(missing, FieldPublishedAt)
		}
	} else {
		missing = append(missing, FieldPublishedAt)
	}

	container, ok := e.strategy.Container(doc)
	if !ok {
		record.Status = harvest.Failed(harvest.ReasonExtraction, "content container not found")
		return record
	}
	record.Paragraphs = e.strategy.Paragraphs(container)
	if len(record.Paragraphs) == 0 {
		missing = append(missing, FieldParagraphs)
	}

	if len(missing) > 0 {
		record.Status = harvest.Partial("missing: " + strings.Join(missing, ", "))
		return record
	}
	record.Status = harvest.Success()
	return record
}

// parseTimestamp accepts RFC 3339 and, failing that, the loose formats news
// sites use in datetime attributes. Results are normalized to UTC.
func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}
