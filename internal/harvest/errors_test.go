package harvest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestHTTPStatusErrorRetryable(t *testing.T) {
	t.Parallel()

	require.True(t, (&HTTPStatusError{StatusCode: 503}).Retryable())
	require.False(t, (&HTTPStatusError{StatusCode: 404}).Retryable())
	require.Contains(t, (&HTTPStatusError{URL: "https://example.com", StatusCode: 404}).Error(), "Not Found")
}

func TestClassifyTransportError(t *testing.T) {
	t.Parallel()

	require.NoError(t, ClassifyTransportError(nil))
	require.ErrorIs(t, ClassifyTransportError(timeoutErr{}), ErrTimeout)
	require.ErrorIs(t, ClassifyTransportError(context.DeadlineExceeded), ErrTimeout)
	require.ErrorIs(t, ClassifyTransportError(errors.New("connection refused")), ErrNetwork)

	canceled := ClassifyTransportError(context.Canceled)
	require.ErrorIs(t, canceled, context.Canceled)
	require.NotErrorIs(t, canceled, ErrNetwork)
}

func TestReasonFor(t *testing.T) {
	t.Parallel()

	exhausted := fmt.Errorf("%w after 3 attempts: %w", ErrMaxRetriesExceeded, fmt.Errorf("%w: boom", ErrTimeout))

	cases := []struct {
		err  error
		want Reason
	}{
		{nil, ReasonNone},
		{exhausted, ReasonMaxRetries},
		{fmt.Errorf("fetch: %w", context.Canceled), ReasonCanceled},
		{fmt.Errorf("%w: slow", ErrTimeout), ReasonTimeout},
		{&HTTPStatusError{StatusCode: 404}, ReasonHTTPStatus},
		{fmt.Errorf("%w: no container", ErrExtraction), ReasonExtraction},
		{fmt.Errorf("%w: reset", ErrNetwork), ReasonNetwork},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ReasonFor(tc.err), "%v", tc.err)
	}
}

func TestRunSummaryBalanced(t *testing.T) {
	t.Parallel()

	s := RunSummary{ArticlesDiscovered: 5, Succeeded: 2, Skipped: 1, Failed: 2}
	require.True(t, s.Balanced())
	s.Failed = 1
	require.False(t, s.Balanced())
}
