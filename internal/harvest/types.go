package harvest

import (
	"time"
)

// SitemapRef points at one sitemap document supplied by the generator.
type SitemapRef struct {
	URL string `json:"url"`
}

// ArticleURL is a discovered article location. Key is the dedup unit.
type ArticleURL struct {
	Raw    string `json:"raw"`
	Key    string `json:"key"`
	Source string `json:"source"`
}

// FetchResult is the outcome of one pooled fetch, after retries.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
	Attempts   int
	Duration   time.Duration
}

// OK reports whether the fetch produced a usable body.
func (r FetchResult) OK() bool {
	return r.Err == nil
}

// FetchResponse is returned by a single-attempt Fetcher.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// StatusKind is the terminal state of an article record.
type StatusKind string

// Terminal article states.
const (
	StatusSuccess StatusKind = "success"
	StatusPartial StatusKind = "partial_extraction"
	StatusSkipped StatusKind = "skipped"
	StatusFailed  StatusKind = "failed"
)

// Reason qualifies skipped and failed records.
type Reason string

// Known reasons.
const (
	ReasonNone       Reason = ""
	ReasonMediaOnly  Reason = "media_only"
	ReasonNetwork    Reason = "network_error"
	ReasonHTTPStatus Reason = "http_status_error"
	ReasonTimeout    Reason = "timeout"
	ReasonMaxRetries Reason = "max_retries_exceeded"
	ReasonExtraction Reason = "extraction_error"
	ReasonCanceled   Reason = "canceled"
)

// Status is the terminal status carried by an ArticleRecord.
type Status struct {
	Kind   StatusKind `json:"kind"`
	Reason Reason     `json:"reason,omitempty"`
	Detail string     `json:"detail,omitempty"`
}

// Success builds a success status.
func Success() Status {
	return Status{Kind: StatusSuccess}
}

// Partial builds a partial extraction status naming the missing fields.
func Partial(detail string) Status {
	return Status{Kind: StatusPartial, Detail: detail}
}

// Skipped builds a skipped status.
func Skipped(reason Reason) Status {
	return Status{Kind: StatusSkipped, Reason: reason}
}

// Failed builds a failed status.
func Failed(reason Reason, detail string) Status {
	return Status{Kind: StatusFailed, Reason: reason, Detail: detail}
}

// ArticleRecord is the structured output for one admitted article URL.
// Nil optional fields mean "not present on the page".
type ArticleRecord struct {
	RunID       string     `json:"run_id"`
	URL         string     `json:"url"`
	Key         string     `json:"key"`
	Sitemap     string     `json:"sitemap"`
	Title       *string    `json:"title"`
	Author      *string    `json:"author"`
	PublishedAt *time.Time `json:"published_at"`
	Paragraphs  []string   `json:"paragraphs"`
	Status      Status     `json:"status"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// RunSummary is the final accounting for one pipeline run.
type RunSummary struct {
	RunID              string    `json:"run_id"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	SitemapsProcessed  int64     `json:"sitemaps_processed"`
	SitemapsFailed     int64     `json:"sitemaps_failed"`
	ArticlesDiscovered int64     `json:"articles_discovered"`
	DuplicatesIgnored  int64     `json:"duplicates_ignored"`
	ArticlesFetched    int64     `json:"articles_fetched"`
	Succeeded          int64     `json:"succeeded"`
	PartialExtractions int64     `json:"partial_extractions"`
	Skipped            int64     `json:"skipped"`
	Failed             int64     `json:"failed"`
	SinkErrors         int64     `json:"sink_errors"`
	Canceled           bool      `json:"canceled"`
}

// Balanced reports whether every discovered article reached a terminal state.
func (s RunSummary) Balanced() bool {
	return s.Succeeded+s.Skipped+s.Failed == s.ArticlesDiscovered
}

// TaskKind distinguishes the two kinds of pooled fetches.
type TaskKind string

// Task kinds.
const (
	TaskSitemap TaskKind = "sitemap"
	TaskArticle TaskKind = "article"
)

// Task is one unit of work on the shared fetch queue.
type Task struct {
	Kind    TaskKind
	URL     string
	Article ArticleURL
}
