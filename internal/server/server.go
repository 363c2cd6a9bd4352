// Package server exposes the advisor, dataset summaries, exports, and session
// progress over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/co2lens-cli/internal/advisor"
	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
	"github.com/KaramelBytes/co2lens-cli/internal/store"
)

const (
	defaultTopN     = 10
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Options configures a Server. Table is required; Store may be nil, which
// disables the session endpoints.
type Options struct {
	Table       *dataset.Table
	Store       *store.Store
	Advisor     *advisor.Advisor
	Logger      *zap.Logger
	CORSOrigins []string
	TopN        int
	// SessionsDir, when set, lets session endpoints accept saved session names.
	SessionsDir string
}

// Server serves one read-only table. Each request brings its own filter.
type Server struct {
	table    *dataset.Table
	store    *store.Store
	advisor  *advisor.Advisor
	logger   *zap.Logger
	origins  []string
	topN     int
	sessDir  string
	validate *validator.Validate
	metrics  *metrics
}

// New builds a Server from opt.
func New(opt Options) *Server {
	s := &Server{
		table:    opt.Table,
		store:    opt.Store,
		advisor:  opt.Advisor,
		logger:   opt.Logger,
		origins:  opt.CORSOrigins,
		topN:     opt.TopN,
		sessDir:  opt.SessionsDir,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  newMetrics(),
	}
	if s.table == nil {
		s.table = &dataset.Table{}
	}
	if s.advisor == nil {
		s.advisor = advisor.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	if s.topN <= 0 {
		s.topN = defaultTopN
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/dataset/summary", s.summary)
		r.Get("/anomalies", s.anomalies)
		r.Post("/recommendations", s.recommend)
		r.Get("/export/{format}", s.exportData)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/progress", s.progress)
			r.Post("/events", s.recordEvents)
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
