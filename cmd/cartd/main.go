package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cartsync/internal/catalog"
	"cartsync/internal/config"
	"cartsync/internal/database"
	"cartsync/internal/handler"
	"cartsync/internal/repository"
	"cartsync/internal/router"
	"cartsync/internal/server"
	"cartsync/internal/service"
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

	logger := config.NewLogger(cfg.Logger, "cartd")
	logger.Info().Msg("starting cartsync cart service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("failed to prepare schema: %w", err)
	}

	// Initialize repositories
	cartRepo := repository.NewCartRepository(pool, logger)
	productRepo := repository.NewProductRepository(pool, logger)

	if cfg.Catalog.FilePath != "" {
		loader := catalogLoader(ctx, cfg, logger)
		if _, err := catalog.Import(ctx, loader, cfg.Catalog.FilePath, productRepo, logger); err != nil {
			return fmt.Errorf("failed to import catalog: %w", err)
		}
	} else {
		logger.Info().Msg("no catalog file configured, skipping import")
	}

	cartService := service.NewCartService(cartRepo, productRepo, logger)
	cartHandler := handler.NewCartHandler(cartService, logger)
	mux := router.New(cartHandler, cfg.Auth.APIKey, logger)

	return server.Run(ctx, server.New(cfg.Server.Address(), mux), logger)
}
