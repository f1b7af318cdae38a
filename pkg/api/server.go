package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
)

// ServerConfig configures an HTTP server.
type ServerConfig struct {
	// Name labels log lines and errors.
	// Default: "api"
	Name string

	// Listen is the TCP address to bind.
	// Default: ":8080"
	Listen string

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

func (c *ServerConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = "api"
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Server runs an http.Handler until its context is cancelled. serve runs
// one for the API and, when enabled, one for metrics.
type Server struct {
	name            string
	server          *http.Server
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a stopped server for handler.
func NewServer(config ServerConfig, handler http.Handler) *Server {
	config.applyDefaults()

	return &Server{
		name:            config.Name,
		shutdownTimeout: config.ShutdownTimeout,
		server: &http.Server{
			Addr:              config.Listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start listens and serves until ctx is cancelled or serving fails.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener cannot be opened or shutdown fails
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("%s server listen on %s: %w", s.name, s.server.Addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("%s server listening on %s", s.name, ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("%s server shutdown signal received", s.name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("%s server failed: %w", s.name, err)
	}
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("%s server shutdown error: %w", s.name, err)
			logger.Error("%s server shutdown error: %v", s.name, err)
		} else {
			logger.Info("%s server stopped gracefully", s.name)
		}
	})
	return shutdownErr
}

// Addr returns the bound address once Start has opened the listener.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
