package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/blockwarm/internal/logger"
	"github.com/marmos91/blockwarm/pkg/api/handlers"
)

// Server provides the status HTTP server for daemon mode.
//
// Endpoints:
//   - GET /healthz: Combined liveness and readiness probe
//   - GET /stats: Watcher, engine and descriptor pool counters
//   - GET /metrics: Prometheus metrics (when enabled)
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	source       handlers.StatsSource
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new status HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving requests.
//
// Defaults are applied here to ensure the server works correctly even when
// created directly (e.g., in tests). This is idempotent with the defaults
// applied during config loading.
//
// Parameters:
//   - config: Server configuration (port, timeouts)
//   - source: Stats provider, normally the watch daemon (may be nil; the
//     endpoints then report unhealthy)
//   - metrics: Prometheus handler to mount at /metrics (may be nil when
//     metrics are disabled)
//
// Returns a configured but not yet started Server.
func NewServer(config APIConfig, source handlers.StatsSource, metrics http.Handler) *Server {
	config.applyDefaults()

	router := NewRouter(source, metrics)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		source: source,
		config: config,
	}
}

// Start starts the status HTTP server and blocks until the context is
// cancelled or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
//
// Parameters:
//   - ctx: Controls the server lifecycle. Cancellation triggers graceful shutdown.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the server fails to start or shutdown encounters an error
func (s *Server) Start(ctx context.Context) error {
	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Status server listening", "port", s.config.Port)
		logger.Debug("Status endpoints available",
			"healthz", fmt.Sprintf("http://localhost:%d/healthz", s.config.Port),
			"stats", fmt.Sprintf("http://localhost:%d/stats", s.config.Port),
			"metrics", fmt.Sprintf("http://localhost:%d/metrics", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		logger.Info("Status server shutdown signal received")
		// Create new context with timeout for graceful shutdown
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("status server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the status server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
//
// Parameters:
//   - ctx: Controls the shutdown timeout. If cancelled, shutdown aborts immediately.
//
// Returns:
//   - nil on successful shutdown
//   - error if shutdown fails or times out
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("Status server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("status server shutdown error: %w", err)
			logger.Error("Status server shutdown error", "error", err)
		} else {
			logger.Info("Status server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
