package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/webgraph/internal/config"
	"github.com/JakeFAU/webgraph/internal/crawler"
	"github.com/JakeFAU/webgraph/internal/dispatcher"
	"github.com/JakeFAU/webgraph/internal/postprocess"
	queueMemory "github.com/JakeFAU/webgraph/internal/queue/memory"
	"github.com/JakeFAU/webgraph/internal/webgraph"
)

func testConfig() config.Config {
	return config.Config{Server: config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 5}}
}

func newTestServer(q *queueMemory.Queue, rec Reconciler) *Server {
	return NewServer(dispatcher.New(q, nil), rec, nil, nil, testConfig(), zap.NewNop())
}

func serve(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitPagesQueuesItems(t *testing.T) {
	t.Parallel()

	q := queueMemory.NewQueue(10)
	s := newTestServer(q, nil)

	body := []byte(`{"urls":["HTTP://A.example:80/","http://a.example/deep"],"collections":["news"]}`)
	rec := serve(s, http.MethodPost, "/v1/pages", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp pagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Queued, 2)
	require.NotEmpty(t, resp.Queued[0].RequestID)

	first, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "http://a.example/", first.URL)
	require.Equal(t, 0, first.ClickDepth)
	require.Equal(t, []string{"news"}, first.Collections)

	second, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, webgraph.ClickDepthPending, second.ClickDepth)
}

func TestSubmitPagesExplicitDepthAndDuplicates(t *testing.T) {
	t.Parallel()

	q := queueMemory.NewQueue(10)
	s := newTestServer(q, nil)

	body := []byte(`{"urls":["http://a.example/x","http://a.example/x"],"click_depth":2}`)
	rec := serve(s, http.MethodPost, "/v1/pages", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp pagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Queued, 1)
	require.Equal(t, 2, resp.Queued[0].ClickDepth)
	require.Equal(t, []string{"http://a.example/x"}, resp.Duplicates)
}

func TestSubmitPagesRejectsBadInput(t *testing.T) {
	t.Parallel()

	s := newTestServer(queueMemory.NewQueue(1), nil)
	cases := map[string]string{
		"invalid JSON":  `{invalid`,
		"urls required": `{"urls":[]}`,
		"malformed url": `{"urls":["/relative"]}`,
		"click_depth":   `{"urls":["http://a.example/"],"click_depth":-1}`,
	}
	for want, body := range cases {
		rec := serve(s, http.MethodPost, "/v1/pages", []byte(body))
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.Contains(t, rec.Body.String(), want)
	}
}

func TestSubmitPagesQueueClosed(t *testing.T) {
	t.Parallel()

	q := queueMemory.NewQueue(1)
	q.Close()
	rec := serve(newTestServer(q, nil), http.MethodPost, "/v1/pages", []byte(`{"urls":["http://a.example/"]}`))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeReconciler struct {
	report postprocess.Report
	err    error
}

func (f fakeReconciler) Enabled() bool { return true }

func (f fakeReconciler) Run(context.Context) (postprocess.Report, error) {
	return f.report, f.err
}

func TestRunPostProcess(t *testing.T) {
	t.Parallel()

	ok := fakeReconciler{report: postprocess.Report{RunID: "run-1", Enabled: true, Processed: 3}}
	rec := serve(newTestServer(queueMemory.NewQueue(1), ok), http.MethodPost, "/v1/postprocess", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report postprocess.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "run-1", report.RunID)
	require.Equal(t, 3, report.Processed)

	busy := fakeReconciler{err: postprocess.ErrAlreadyRunning}
	rec = serve(newTestServer(queueMemory.NewQueue(1), busy), http.MethodPost, "/v1/postprocess", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	broken := fakeReconciler{err: errors.New("index down")}
	rec = serve(newTestServer(queueMemory.NewQueue(1), broken), http.MethodPost, "/v1/postprocess", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(newTestServer(queueMemory.NewQueue(1), nil), http.MethodPost, "/v1/postprocess", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProbes(t *testing.T) {
	t.Parallel()

	s := newTestServer(queueMemory.NewQueue(1), nil)
	require.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/readyz", nil).Code)

	metricsRec := serve(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metricsRec.Code)
	require.Contains(t, metricsRec.Body.String(), "http_requests_total")

	down := NewServer(dispatcher.New(queueMemory.NewQueue(1), nil), nil, nil,
		func(context.Context) error { return errors.New("db down") }, testConfig(), nil)
	require.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodGet, "/readyz", nil).Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	s := NewServer(dispatcher.New(queueMemory.NewQueue(1), nil), nil, nil, nil, cfg, nil)

	require.Equal(t, http.StatusForbidden, serve(s, http.MethodPost, "/v1/postprocess", nil).Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/postprocess", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Probes stay open.
	require.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/healthz", nil).Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	s := newTestServer(queueMemory.NewQueue(1), nil)
	require.NotEmpty(t, serve(s, http.MethodGet, "/healthz", nil).Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "given")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, "given", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := newTestServer(queueMemory.NewQueue(1), nil)
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.EqualError(t, err, "hijacker not supported")

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.NoError(t, conn.Close())
	require.NoError(t, h.CloseClient())
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	mu     sync.Mutex
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.mu.Lock()
	h.client = client
	h.mu.Unlock()
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

var _ Enqueuer = (*dispatcher.Dispatcher)(nil)
var _ crawler.Queue = (*queueMemory.Queue)(nil)
