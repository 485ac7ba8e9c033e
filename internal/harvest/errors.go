package harvest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error taxonomy. Every per-URL failure resolves to one of these before it
// reaches a record; none of them abort a run.
var (
	ErrNetwork            = errors.New("network error")
	ErrTimeout            = errors.New("timeout")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrParse              = errors.New("sitemap parse error")
	ErrExtraction         = errors.New("extraction error")
	ErrQueueClosed        = errors.New("queue closed")
	ErrNoSitemaps         = errors.New("no sitemap urls to harvest")
	ErrRunStarted         = errors.New("run already started")
	// ErrNoSitemapReachable is returned alongside a complete summary when no
	// sitemap of an uncanceled run could be fetched and parsed.
	ErrNoSitemapReachable = errors.New("no sitemap could be harvested")
)

// HTTPStatusError reports a non-success HTTP status. 4xx codes are permanent,
// 5xx codes are retryable.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d (%s) for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Retryable reports whether a retry could plausibly succeed.
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// ClassifyTransportError maps a transport-level error onto the taxonomy.
// Cancellation of the caller's context is passed through unchanged.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// ReasonFor maps a fetch or extraction error to the terminal record reason.
func ReasonFor(err error) Reason {
	var statusErr *HTTPStatusError
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrMaxRetriesExceeded):
		return ReasonMaxRetries
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.As(err, &statusErr):
		return ReasonHTTPStatus
	case errors.Is(err, ErrExtraction):
		return ReasonExtraction
	default:
		return ReasonNetwork
	}
}
