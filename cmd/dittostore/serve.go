package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/internal/ratelimiter"
	"github.com/marmos91/dittostore/pkg/api"
	"github.com/marmos91/dittostore/pkg/config"
	"github.com/marmos91/dittostore/pkg/metrics"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the store over HTTP",
		Long: `Serve the configured store over HTTP until SIGINT or SIGTERM.

Single store routes:
  POST   /files               upload (X-Filename, X-Meta-<field> headers)
  GET    /files[?removed=true]
  GET    /files/{id}          download
  GET    /files/{id}/meta
  DELETE /files/{id}
  POST   /files/{id}/restore

Multitenant stores serve the same routes under /tenants/{tenant} and
manage tenants with GET/POST /tenants and DELETE /tenants/{tenant}.

When metrics.enabled is set, Prometheus metrics are served on metrics.port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "API listen address (overrides server.listen)")
	return cmd
}

func runServe(cfg *config.Config) error {
	// Metrics first: stores created afterwards pick up the registry
	metricsServer := config.InitializeMetrics(cfg)

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(); err != nil {
			logger.Error("Store shutdown error: %v", err)
		}
	}()

	handler, err := buildHandler(cfg, s)
	if err != nil {
		return err
	}

	srv := api.NewServer(api.ServerConfig{
		Listen:          cfg.Server.Listen,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	metricsDone := make(chan error, 1)
	if metricsServer != nil {
		go func() {
			metricsDone <- metricsServer.Start(ctx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Serving store at %s. Press Ctrl+C to stop.", cfg.Store.Root)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		if err := <-serverDone; err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		if metricsServer != nil {
			if err := <-metricsDone; err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("Metrics server shutdown error: %v", err)
			}
		}
		logger.Info("Server stopped gracefully")
		return nil

	case err := <-serverDone:
		cancel()
		return err

	case err := <-metricsDone:
		cancel()
		<-serverDone
		return err
	}
}

// buildHandler builds the API of the session with the configured upload cap
// and wraps it in the rate limiter and, when metrics are enabled, the request
// instrumentation.
func buildHandler(cfg *config.Config, s *session) (http.Handler, error) {
	maxUpload, err := cfg.Server.MaxUploadBytes()
	if err != nil {
		return nil, err
	}
	var handler http.Handler = api.New(s.single, s.tenants, api.WithMaxUploadSize(maxUpload))

	limit := cfg.Server.RateLimit
	limiter := ratelimiter.New(limit.RequestsPerSecond, limit.Burst)
	if limit.Wait {
		handler = ratelimiter.WaitMiddleware(limiter, handler)
	} else {
		handler = ratelimiter.Middleware(limiter, handler)
	}

	if metrics.IsEnabled() {
		handler = metrics.InstrumentHandler(handler)
	}
	return handler, nil
}
