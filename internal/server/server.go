// Package server provides the observability and display HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ColonelBlimp/handmorse/internal/logging"
)

// Server serves /metrics, /healthz and, when a display hub is mounted, /ws.
type Server struct {
	server *http.Server
	addr   string
	log    zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// Options configures the server routes.
type Options struct {
	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer
	// Display is mounted on /ws when non-nil
	Display http.Handler
}

// New creates a new observability HTTP server.
func New(addr string, opts Options) *Server {
	mux := http.NewServeMux()

	if opts.Gatherer == nil {
		mux.Handle("/metrics", promhttp.Handler())
	} else {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.Display != nil {
		mux.Handle("/ws", opts.Display)
	}

	return &Server{
		addr: addr,
		log:  logging.WithComponent("server"),
		server: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 5 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
	}
}

// Start binds the listen address and serves in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("Starting observability HTTP server")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Observability HTTP server error")
		}
	}()
	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down observability HTTP server")
	return s.server.Shutdown(ctx)
}
