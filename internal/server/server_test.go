package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
	"github.com/JakeFAU/sitemap-article-harvester/internal/metrics"
)

type fakeStatus struct {
	state   string
	summary harvest.RunSummary
}

func (f fakeStatus) Status() (string, harvest.RunSummary) {
	return f.state, f.summary
}

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, New(nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyzFollowsRunState(t *testing.T) {
	t.Parallel()

	s := New(nil)
	require.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/readyz").Code)

	s.Attach(fakeStatus{state: "running"})
	require.Equal(t, http.StatusOK, serve(t, s, "/readyz").Code)

	s.Attach(fakeStatus{state: "draining"})
	require.Equal(t, http.StatusOK, serve(t, s, "/readyz").Code)

	s.Attach(fakeStatus{state: "completed"})
	require.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/readyz").Code)
}

func TestRunEndpoint(t *testing.T) {
	t.Parallel()

	s := New(nil)
	require.Equal(t, http.StatusNotFound, serve(t, s, "/v1/run").Code)

	s.Attach(fakeStatus{state: "running", summary: harvest.RunSummary{RunID: "run-9", Succeeded: 4}})
	rec := serve(t, s, "/v1/run")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		State   string             `json:"state"`
		Summary harvest.RunSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "running", body.State)
	require.Equal(t, "run-9", body.Summary.RunID)
	require.Equal(t, int64(4), body.Summary.Succeeded)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics.ObserveSitemap("ok")
	rec := serve(t, New(nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "harvester_sitemaps_total")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(nil).ListenAndServe(ctx, addr)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRequestMetricsRecordRoute(t *testing.T) {
	t.Parallel()

	s := New(nil)
	serve(t, s, "/healthz")
	rec := serve(t, s, "/metrics")
	require.Contains(t, rec.Body.String(), `harvester_http_requests_total{code="200",method="GET",route="/healthz"}`)
}

func TestListenFailsOnBusyAddress(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	_, err = Listen(busy.Addr().String())
	require.ErrorContains(t, err, "http server listen")
}

func TestServeUsesProvidedListener(t *testing.T) {
	t.Parallel()

	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(nil).Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}
