// Package server exposes the takeoff pipeline over HTTP and reports liveness over gRPC health.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/joseph-ayodele/pipetakeoff/constants"
	"github.com/joseph-ayodele/pipetakeoff/internal/analysis"
	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
	"github.com/joseph-ayodele/pipetakeoff/internal/export"
)

const (
	shutdownTimeout = 10 * time.Second
	maxJSONBody     = 8 << 20
)

type Ingestor interface {
	Ingest(ctx context.Context, doc []byte, fileName string) (entity.UploadResult, error)
}

type SessionReader interface {
	Page(id string, pageNumber int) ([]byte, error)
	Info(id string) (entity.SessionInfo, error)
	List() []entity.SessionInfo
}

type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (entity.ExtractionOutcome, error)
}

type Exporter interface {
	Export(ctx context.Context, format export.Format, records []entity.MaterialRecord) (export.Document, error)
}

// Deps are the services the HTTP handlers delegate to.
type Deps struct {
	Ingest   Ingestor
	Sessions SessionReader
	Analysis Analyzer
	Export   Exporter
}

type Options struct {
	AllowedOrigins []string
	MaxUploadMB    int64
	// BeforeShutdown runs once ctx is done, ahead of draining in-flight requests.
	BeforeShutdown func()
}

type Server struct {
	deps           Deps
	origins        map[string]struct{}
	maxUpload      int64
	beforeShutdown func()
	now            func() time.Time
	logger         *slog.Logger
}

func New(deps Deps, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = constants.DefaultMaxUploadMB
	}
	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		origins[o] = struct{}{}
	}
	return &Server{
		deps:           deps,
		origins:        origins,
		maxUpload:      opts.MaxUploadMB << 20,
		beforeShutdown: opts.BeforeShutdown,
		now:            time.Now,
		logger:         logger,
	}
}

// Handler returns the routed API wrapped in the standard middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/upload/{sessionId}/page/{pageNumber}", s.handlePage)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/sessions/{sessionId}", s.handleSession)
	mux.HandleFunc("POST /api/analysis", s.handleAnalysis)
	mux.HandleFunc("POST /api/materials", s.handleManualMaterial)
	mux.HandleFunc("POST /api/export/{format}", s.handleExport)
	mux.HandleFunc("GET /health", s.handleHealth)

	return chain(mux,
		s.requestID,
		s.accessLog,
		securityHeaders,
		s.cors,
	)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("http.listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http.shutting_down")
		if s.beforeShutdown != nil {
			s.beforeShutdown()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http.shutdown_failed", "error", err)
			return err
		}
		s.logger.Info("http.stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}
