// Package server exposes workflow execution over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/duraflow-go/flow"
)

// Server is the HTTP facade over an Engine:
//
//	POST /{workflow}                 execute, body = JSON input
//	POST /{workflow}/{executionID}   resume a paused execution
//	GET  /inspect/{executionID}      full context with events
//	GET  /workflows                  registered workflow names
//	GET  /healthz                    liveness
//	GET  /metrics                    Prometheus scrape (when configured)
//
// Execute and resume return the execution summary with HTTP 200 even
// when the workflow failed: the failure lives in the summary, not the
// transport. Errors map to 404 (unknown workflow or execution) or 500.
type Server struct {
	engine   *flow.Engine
	catalog  interface{ Names() []string }
	logger   *zap.Logger
	token    string
	gatherer prometheus.Gatherer
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAuthToken requires a matching bearer token on every API request.
func WithAuthToken(token string) ServerOption {
	return func(s *Server) { s.token = token }
}

// WithMetricsGatherer mounts /metrics for the given registry.
func WithMetricsGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) { s.gatherer = g }
}

// WithCatalogNames enables GET /workflows from a catalog that can list
// its names.
func WithCatalogNames(c interface{ Names() []string }) ServerOption {
	return func(s *Server) { s.catalog = c }
}

// New creates a Server. A nil logger falls back to zap.NewNop.
func New(engine *flow.Engine, logger *zap.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: engine, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all routes and middleware mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if s.token != "" {
			r.Use(s.requireBearer)
		}
		r.Get("/workflows", s.handleList)
		r.Get("/inspect/{executionID}", s.handleInspect)
		r.Post("/{workflow}", s.handleExecute)
		r.Post("/{workflow}/{executionID}", s.handleResume)
	})
	return r
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server listening", zap.String("addr", addr))
	return srv.ListenAndServe()
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, "")
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, chi.URLParam(r, "executionID"))
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, executionID string) {
	name := chi.URLParam(r, "workflow")

	input, err := readInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var opts []flow.RunOption
	if executionID != "" {
		opts = append(opts, flow.WithExecutionID(executionID))
	}
	ec, err := s.engine.Execute(r.Context(), name, input, opts...)
	switch {
	case errors.Is(err, flow.ErrWorkflowNotFound), errors.Is(err, flow.ErrContextNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.logger.Error("execution failed",
			zap.String("workflow", name),
			zap.String("execution_id", executionID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ec.Summarize())
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "executionID")
	ec, err := s.engine.Inspect(r.Context(), executionID)
	switch {
	case errors.Is(err, flow.ErrContextNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ec)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.Names())
}

// readInput parses the request body as the workflow input. An empty
// body means no input.
func readInput(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, errors.New("request body is not valid JSON")
	}
	return json.RawMessage(body), nil
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, errors.New("invalid or missing bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
