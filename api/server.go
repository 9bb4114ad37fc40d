// Package api serves search, embedding jobs and pipeline control over HTTP.
//
// Every response uses the same envelope:
//
//	{"success": true, "data": {...}, "metadata": {"requestId": "...", "timestamp": "...", "processingTime": 1.2}}
//	{"success": false, "error": {"code": "INVALID_QUERY", "message": "..."}, "metadata": {...}}
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/poiesic/semsearch/embedding"
	"github.com/poiesic/semsearch/metrics"
	"github.com/poiesic/semsearch/pipeline"
	"github.com/poiesic/semsearch/search"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Backend is what the server exposes.
type Backend interface {
	Search() *search.Service
	Embeddings() *embedding.Service
	Pipeline() *pipeline.Pipeline
	Monitor() *metrics.Monitor
	RunPipeline(ctx context.Context, mode pipeline.Mode, ids []string) (*pipeline.Progress, error)
}

// Server is the HTTP front end.
type Server struct {
	backend Backend
	http    *http.Server
	logger  *slog.Logger

	// ctx outlives requests so asynchronous runs survive the response
	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeouts sets the read and write timeouts of the underlying server.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.http.ReadTimeout = read
		s.http.WriteTimeout = write
	}
}

// NewServer creates a server listening on addr.
func NewServer(addr string, backend Backend, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		backend: backend,
		logger:  slog.Default().With("component", "api"),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.http = &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.http.Handler = s.Handler()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/search", s.handleSearch)
	mux.HandleFunc("GET /v1/search", s.handleSearchQuery)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/metrics", s.handleMetrics)

	mux.HandleFunc("POST /v1/embeddings/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /v1/embeddings/jobs", s.handleListJobs)
	mux.HandleFunc("GET /v1/embeddings/jobs/{id}", s.handleGetJob)

	mux.HandleFunc("POST /v1/pipeline/runs", s.handleStartRun)
	mux.HandleFunc("GET /v1/pipeline/status", s.handlePipelineStatus)

	return mux
}

// ListenAndServe serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, stops any running pipeline and waits
// for in-flight work until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.backend.Pipeline().Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
