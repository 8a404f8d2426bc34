// Package server exposes declared resources over HTTP.
//
// Routes:
//
//	GET /:resource   rows matching the query string, 400 on a rejected query
//	GET /healthz     liveness
//	GET /metrics     Prometheus exposition (when metrics are enabled)
//
// The query string uses the bracket syntax of package qs:
//
//	GET /people?filter[age][>]=30&sort[name]=asc&page[size]=10
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/querier/internal/decl"
	"github.com/roach88/querier/internal/descriptor"
	"github.com/roach88/querier/internal/metrics"
	"github.com/roach88/querier/internal/qs"
	"github.com/roach88/querier/internal/querier"
	"github.com/roach88/querier/internal/querysql"
	"github.com/roach88/querier/internal/store"
	"github.com/roach88/querier/internal/validator"
)

// RequestIDHeader carries the query's request ID on every /:resource
// response.
const RequestIDHeader = "X-Request-ID"

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 5 * time.Second

// ResourceSource resolves a route name to its current declaration.
type ResourceSource interface {
	Resource(name string) (*decl.Resource, bool)
}

// Server serves resources from one SQLite store.
type Server struct {
	store       *store.Store
	resources   ResourceSource
	logger      *slog.Logger
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	metricsPath string
	tieBreaker  string
	ids         querier.IDGenerator
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records query and HTTP metrics to m and serves gatherer at
// path.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer, path string) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
		s.metricsPath = path
	}
}

// WithTieBreaker sets the stable-order column for resources that do not
// declare one.
func WithTieBreaker(column string) Option {
	return func(s *Server) {
		s.tieBreaker = column
	}
}

// WithIDGenerator sets the request ID source. Default: UUIDv7.
func WithIDGenerator(g querier.IDGenerator) Option {
	return func(s *Server) {
		s.ids = g
	}
}

// New creates a Server.
func New(st *store.Store, resources ResourceSource, opts ...Option) *Server {
	s := &Server{
		store:     st,
		resources: resources,
		logger:    slog.Default(),
		ids:       querier.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// listResponse is the body of a successful GET /:resource.
type listResponse struct {
	RequestID string           `json:"request_id"`
	Rows      []store.Row      `json:"rows"`
	Page      *descriptor.Page `json:"page,omitempty"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.observe())

	router.GET("/healthz", func(c *gin.Context) {
		s.writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil && s.metricsPath != "" {
		router.GET(s.metricsPath, gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		})))
	}
	router.GET("/:resource", s.list)

	return router
}

// observe records request count and latency by route template.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) list(c *gin.Context) {
	name := c.Param("resource")
	resource, ok := s.resources.Resource(name)
	if !ok {
		s.writeJSON(c, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown resource %q", name)})
		return
	}

	query, err := qs.Parse(c.Request.URL.RawQuery)
	if err != nil {
		// undecodable escapes are the client's fault too
		s.writeJSON(c, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id := s.ids.Generate()
	c.Header(RequestIDHeader, id)

	q, err := resource.Querier(query,
		querier.WithLogger(s.logger.With("resource", name)),
		querier.WithMetrics(s.metrics),
		querier.WithRequestID(id),
	)
	if err != nil {
		s.fail(c, err)
		return
	}
	sel, err := q.Run(resource.Select())
	if err != nil {
		s.fail(c, err)
		return
	}

	tieBreaker := resource.TieBreaker
	if tieBreaker == "" {
		tieBreaker = s.tieBreaker
	}
	compiler := &querysql.Compiler{Dialect: querysql.SQLite, TieBreaker: tieBreaker}
	sql, params, err := compiler.Compile(sel)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Debug("executing query", "request_id", id, "sql", sql)

	rows, err := s.store.Query(c.Request.Context(), sql, params...)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := listResponse{RequestID: id, Rows: rows}
	if set, err := q.Page(); err == nil {
		if page, ok := descriptor.PageOf(set); ok {
			resp.Page = &page
		}
	}
	s.writeJSON(c, http.StatusOK, resp)
}

// fail maps err to a response: 400 for a rejected query, 500 otherwise.
// Internal details are logged, not returned.
func (s *Server) fail(c *gin.Context, err error) {
	if ve, ok := validator.AsValidationError(err); ok {
		s.writeJSON(c, http.StatusBadRequest, errorResponse{Error: ve.Error()})
		return
	}
	s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	s.writeJSON(c, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func (s *Server) writeJSON(c *gin.Context, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
