// Package server exposes the ledger over a JSON REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/app"
	"github.com/bobmcallan/folio/internal/common"
)

// ShutdownTimeout bounds how long in-flight requests get to finish.
const ShutdownTimeout = 10 * time.Second

// Server serves the REST API for one App.
type Server struct {
	app    *app.App
	server *http.Server
	logger *common.Logger

	mu       sync.Mutex
	listener net.Listener

	// shutdownChan is signalled by POST /api/shutdown
	shutdownChan chan struct{}
}

// NewServer builds the routed, middleware-wrapped HTTP server. Nothing is
// bound until Listen or Run.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:          a,
		logger:       a.Logger.WithComponent("http"),
		shutdownChan: make(chan struct{}, 1),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(a.Config.Server.Host, fmt.Sprint(a.Config.Server.Port)),
		Handler:           applyMiddleware(mux, s.logger, a.Config),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Inline suggestion regeneration waits on the generator.
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// SetShutdownChannel replaces the channel signalled by POST /api/shutdown.
func (s *Server) SetShutdownChannel(ch chan struct{}) {
	s.shutdownChan = ch
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Listen binds the configured address. Port 0 picks a free port; Addr
// reports the result.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Start serves on the bound listener, binding first if needed. It blocks
// and returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		l = s.listener
	}
	s.logger.Info().Str("addr", l.Addr().String()).Msg("REST API listening")
	return s.server.Serve(l)
}

// Run serves until ctx is cancelled, a shutdown is requested over HTTP, or
// the server fails, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- s.Start() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("Shutdown signal received")
	case <-s.shutdownChan:
		s.logger.Info().Msg("Shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
