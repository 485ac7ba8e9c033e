package harvest

import (
	"context"
	"time"
)

// Fetcher performs a single HTTP GET without retries.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Limiter throttles outbound requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Queue is the shared work queue consumed by the fetch pool.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
	Close()
}

// ResultHandler consumes a fetch result on the worker that produced it.
type ResultHandler interface {
	Handle(ctx context.Context, task Task, result FetchResult)
}

// Sink receives terminal article records. Errors are logged by the caller,
// never retried.
type Sink interface {
	Emit(ctx context.Context, record ArticleRecord) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
