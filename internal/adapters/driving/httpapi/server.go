// Package httpapi exposes question answering and backend health over HTTP.
//
//	POST /api/query   {"query": "...", "stream": false}
//	GET  /api/health
//
// Streaming answers are newline-delimited JSON events: start, chunk...,
// sources, end.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/custodia-labs/context-search/internal/core/ports/driving"
	"github.com/custodia-labs/context-search/internal/logger"
)

// ErrMissingQueryService is returned when Ports has no query service.
var ErrMissingQueryService = errors.New("httpapi: query service is required")

// ErrMissingHealthService is returned when Ports has no health service.
var ErrMissingHealthService = errors.New("httpapi: health service is required")

// Ports holds the services the API drives.
type Ports struct {
	Query  driving.QueryService
	Health driving.HealthService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Health == nil {
		return ErrMissingHealthService
	}
	return nil
}

// Options configures request handling.
type Options struct {
	// AssistantDisabled rejects queries with 403.
	AssistantDisabled bool

	// RateLimit is the number of queries allowed per minute per client.
	// Zero disables limiting.
	RateLimit int

	// TopK overrides the configured number of passages. Zero keeps it.
	TopK int
}

// Server serves the query and health endpoints.
type Server struct {
	ports   *Ports
	opts    Options
	limiter *clientLimiter
	mux     *http.ServeMux

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates an API server.
func NewServer(ports *Ports, opts Options) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports: ports,
		opts:  opts,
		mux:   http.NewServeMux(),
	}
	if opts.RateLimit > 0 {
		s.limiter = newClientLimiter(opts.RateLimit)
	}

	s.mux.HandleFunc("POST /api/query", s.withRequestID(s.handleQuery))
	s.mux.HandleFunc("GET /api/health", s.withRequestID(s.handleHealth))

	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server: %v", err)
		}
	}()

	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.Start(addr); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Shutdown(context.Background())
}

// Shutdown stops the server, waiting up to five seconds for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	logger.Debug("http: shutting down")
	return s.server.Shutdown(ctx)
}
