package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cartsync/internal/cartclient"
	"cartsync/internal/config"
	"cartsync/internal/coordinator"
	"cartsync/internal/handler"
	"cartsync/internal/router"
	"cartsync/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger, "storefront")
	logger.Info().Msg("starting cartsync storefront")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The cart service key defaults to our own key when both run side by side
	upstreamKey := cfg.Upstream.APIKey
	if upstreamKey == "" {
		upstreamKey = cfg.Auth.APIKey
	}

	client, err := cartclient.New(cartclient.Config{
		BaseURL:            cfg.Upstream.BaseURL,
		APIKey:             upstreamKey,
		Timeout:            cfg.Upstream.Timeout,
		BreakerMaxFailures: uint32(cfg.Upstream.BreakerMaxFailures),
		BreakerOpenTimeout: cfg.Upstream.BreakerOpenTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cart service client: %w", err)
	}

	notifications := coordinator.NewNotificationLog(cfg.Coordinator.NotificationHistory)
	coord := coordinator.New(client, notifications, logger,
		coordinator.WithRequestTimeout(cfg.Coordinator.RequestTimeout),
	)
	defer coord.Close()

	// An unreachable cart service at start-up is not fatal; the first
	// successful update or reconciliation fills the view.
	refreshCtx, refreshCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := coord.Refresh(refreshCtx); err != nil {
		logger.Warn().Err(err).Msg("initial cart fetch failed, starting with an empty cart")
	}
	refreshCancel()

	storefrontHandler := handler.NewStorefrontHandler(coord, client, notifications, logger)
	mux := router.NewStorefront(storefrontHandler, cfg.Auth.APIKey, logger)

	// Queued quantity changes get the rest of the shutdown window to land
	return server.Run(ctx, server.New(cfg.Server.Address(), mux), logger, coord.Wait)
}
