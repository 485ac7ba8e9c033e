// Package fetchpool runs rate-limited, retrying HTTP fetches on a fixed set
// of workers fed by a shared queue.
package fetchpool

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
	"github.com/JakeFAU/sitemap-article-harvester/internal/metrics"
	"github.com/JakeFAU/sitemap-article-harvester/internal/telemetry"
)

// Client wraps a single-attempt Fetcher with politeness and retries.
type Client struct {
	fetcher harvest.Fetcher
	limiter harvest.Limiter
	policy  *ExponentialRetryPolicy
	logger  *zap.Logger
}

// NewClient constructs a Client. A nil limiter disables throttling.
func NewClient(
	fetcher harvest.Fetcher,
	limiter harvest.Limiter,
	policy *ExponentialRetryPolicy,
	logger *zap.Logger,
) *Client {
	if policy == nil {
		policy = NewExponentialRetryPolicy(RetryConfig{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		fetcher: fetcher,
		limiter: limiter,
		policy:  policy,
		logger:  logger,
	}
}

// Fetch retrieves url, retrying transient failures up to the policy's attempt
// cap. It never returns an error directly; failures are carried in
// FetchResult.Err and the run continues.
func (c *Client) Fetch(ctx context.Context, kind harvest.TaskKind, url string, timeout time.Duration) harvest.FetchResult {
	ctx, span := telemetry.Tracer().Start(ctx, "fetchpool.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("harvest.kind", string(kind)),
			attribute.String("url.full", url),
		),
	)
	defer span.End()

	start := time.Now()
	result := harvest.FetchResult{URL: url}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			result.Err = canceled(ctx)
			break
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, url); err != nil {
				result.Err = canceled(ctx)
				break
			}
		}

		result.Attempts = attempt
		metrics.ObserveAttempt(string(kind))
		resp, err := c.attempt(ctx, url, timeout)
		if err == nil {
			result.URL = resp.URL
			result.StatusCode = resp.StatusCode
			result.Body = resp.Body
			result.Err = nil
			break
		}
		if ctx.Err() != nil {
			result.Err = canceled(ctx)
			break
		}
		var statusErr *harvest.HTTPStatusError
		if errors.As(err, &statusErr) {
			result.StatusCode = statusErr.StatusCode
		}
		lastErr = err

		if !c.policy.ShouldRetry(err, attempt) {
			if c.policy.Retryable(err) {
				result.Err = fmt.Errorf("%w after %d attempts: %w", harvest.ErrMaxRetriesExceeded, attempt, lastErr)
			} else {
				result.Err = err
			}
			break
		}

		wait := c.policy.Backoff(attempt)
		c.logger.Debug("retrying fetch",
			zap.String("url", url),
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := pause(ctx, wait); err != nil {
			result.Err = canceled(ctx)
			break
		}
	}

	result.Duration = time.Since(start)
	metrics.ObserveFetch(string(kind), outcomeLabel(result.Err), result.Duration)
	span.SetAttributes(
		attribute.Int("harvest.attempts", result.Attempts),
		attribute.Int("http.response.status_code", result.StatusCode),
	)
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, outcomeLabel(result.Err))
	}
	return result
}

// attempt performs one bounded request and maps the outcome onto the error
// taxonomy.
func (c *Client) attempt(ctx context.Context, url string, timeout time.Duration) (harvest.FetchResponse, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := c.fetcher.Fetch(attemptCtx, url)
	if err != nil {
		return harvest.FetchResponse{}, harvest.ClassifyTransportError(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return harvest.FetchResponse{}, &harvest.HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if resp.URL == "" {
		resp.URL = url
	}
	return resp, nil
}

func canceled(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil {
		return fmt.Errorf("fetch canceled: %w", context.Canceled)
	}
	if errors.Is(cause, context.Canceled) {
		return fmt.Errorf("fetch canceled: %w", cause)
	}
	return fmt.Errorf("fetch canceled: %w: %w", context.Canceled, cause)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(harvest.ReasonFor(err))
}
