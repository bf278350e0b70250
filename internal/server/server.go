// Package server runs an HTTP server until its context ends and then shuts
// it down gracefully.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ShutdownTimeout bounds the graceful shutdown, including drain hooks.
const ShutdownTimeout = 30 * time.Second

// DrainFunc runs after the server stops accepting requests.
type DrainFunc func(ctx context.Context) error

// New creates an HTTP server with the timeouts both services use.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Run serves until ctx is done or the server fails. On ctx cancellation it
// shuts the server down and then runs drains in order.
func Run(ctx context.Context, srv *http.Server, logger zerolog.Logger, drains ...DrainFunc) error {
	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", srv.Addr).
			Msg("HTTP server started")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := srv.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		for _, drain := range drains {
			if err := drain(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("drain did not complete")
			}
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
