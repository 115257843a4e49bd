package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/webgraph/internal/config"
	"github.com/JakeFAU/webgraph/internal/crawler"
	"github.com/JakeFAU/webgraph/internal/metrics"
	"github.com/JakeFAU/webgraph/internal/postprocess"
	"github.com/JakeFAU/webgraph/internal/webgraph"
)

const enqueueTimeout = 5 * time.Second

// Enqueuer accepts crawl items.
type Enqueuer interface {
	Enqueue(ctx context.Context, item crawler.QueueItem) (crawler.QueueItem, error)
}

// Reconciler runs post-processing passes.
type Reconciler interface {
	Enabled() bool
	Run(ctx context.Context) (postprocess.Report, error)
}

// ReadyFunc reports whether downstream dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

// Server wires HTTP handlers to the dispatcher, the post-processor and the index.
type Server struct {
	router     chi.Router
	enqueuer   Enqueuer
	reconciler Reconciler
	edges      *EdgeHandler
	ready      ReadyFunc
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes. ready may be nil.
func NewServer(
	enqueuer Enqueuer,
	reconciler Reconciler,
	edges *EdgeHandler,
	ready ReadyFunc,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		enqueuer:   enqueuer,
		reconciler: reconciler,
		edges:      edges,
		ready:      ready,
		cfg:        cfg,
		logger:     logger,
	}
	timeout := cfg.Server.RequestTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/pages", s.submitPages)
		r.Post("/postprocess", s.runPostProcess)
		if edges != nil {
			r.Get("/schema", edges.Schema)
			r.Get("/edges", edges.FindEdges)
			r.Get("/edges/{edge_id}", edges.GetEdge)
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type pagesRequest struct {
	URLs        []string `json:"urls"`
	ClickDepth  *int     `json:"click_depth"`
	Collections []string `json:"collections"`
}

type queuedPage struct {
	RequestID  string `json:"request_id"`
	URL        string `json:"url"`
	ClickDepth int    `json:"click_depth"`
}

type pagesResponse struct {
	Queued     []queuedPage `json:"queued"`
	Duplicates []string     `json:"duplicates,omitempty"`
}

func (s *Server) submitPages(w http.ResponseWriter, r *http.Request) {
	var req pagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls required")
		return
	}
	if req.ClickDepth != nil && *req.ClickDepth < 0 {
		writeError(w, http.StatusBadRequest, "click_depth must be >= 0")
		return
	}
	urls := make([]*webgraph.URL, 0, len(req.URLs))
	for _, raw := range req.URLs {
		u, err := webgraph.ParseURL(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		urls = append(urls, u)
	}

	ctx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	resp := pagesResponse{Queued: make([]queuedPage, 0, len(urls))}
	for _, u := range urls {
		item, err := s.enqueuer.Enqueue(ctx, crawler.QueueItem{
			URL:         u.String(),
			ClickDepth:  seedDepth(u, req.ClickDepth),
			Collections: req.Collections,
		})
		if errors.Is(err, crawler.ErrDuplicate) {
			resp.Duplicates = append(resp.Duplicates, u.String())
			continue
		}
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusRequestTimeout
			}
			s.logger.Error("enqueue page failed", zap.String("url", u.String()), zap.Error(err))
			writeError(w, status, err.Error())
			return
		}
		resp.Queued = append(resp.Queued, queuedPage{RequestID: item.RequestID, URL: item.URL, ClickDepth: item.ClickDepth})
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// seedDepth is the click depth of a submitted page: explicit when given,
// zero for a site root and unresolved otherwise.
func seedDepth(u *webgraph.URL, explicit *int) int {
	if explicit != nil {
		return *explicit
	}
	if u.ProbablyRoot() {
		return 0
	}
	return webgraph.ClickDepthPending
}

func (s *Server) runPostProcess(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		writeError(w, http.StatusServiceUnavailable, "post-processing unavailable")
		return
	}
	report, err := s.reconciler.Run(r.Context())
	if err != nil {
		if errors.Is(err, postprocess.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("post-processing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "post-processing failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
