// Package integration exercises the storefront and cart service together
// against a real PostgreSQL instance.
package integration

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cartsync/internal/cartclient"
	"cartsync/internal/catalog"
	"cartsync/internal/coordinator"
	"cartsync/internal/database"
	"cartsync/internal/handler"
	"cartsync/internal/repository"
	"cartsync/internal/router"
	"cartsync/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testAPIKey = "test-api-key"

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, a connection pool and
// the cart schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := database.NewPoolFromURL(ctx, connStr, database.PoolSettings{MaxConns: 10, MinConns: 2}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := database.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedCatalog writes a catalogue file and imports it the way cartd does.
func SeedCatalog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	rows := [][]string{
		{"productId", "name", "unitPrice", "stock"},
		{"P001", "Oat Milk", "2.50", "40"},
		{"P002", "Coffee Beans", "12.00", "3"},
		{"P003", "Tomatoes", "0.45", "200"},
	}

	path := filepath.Join(t.TempDir(), "products.csv.gz")
	file, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(file)
	require.NoError(t, csv.NewWriter(gz).WriteAll(rows))
	require.NoError(t, gz.Close())
	require.NoError(t, file.Close())

	logger := zerolog.Nop()
	products := repository.NewProductRepository(pool, logger)
	_, err = catalog.Import(context.Background(), catalog.NewFileLoader(logger), path, products, logger)
	require.NoError(t, err)
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"cart_items", "products"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

// Stack is a running cart service plus a storefront session in front of it.
type Stack struct {
	CartService   service.CartService
	CartServer    *httptest.Server
	Client        *cartclient.Client
	Coordinator   *coordinator.Coordinator
	Notifications *coordinator.NotificationLog
	Storefront    *httptest.Server
}

// StartStack wires cartd and the storefront the way the binaries do.
func StartStack(t *testing.T, pool *pgxpool.Pool, opts ...coordinator.Option) *Stack {
	t.Helper()

	logger := zerolog.Nop()

	cartService := service.NewCartService(
		repository.NewCartRepository(pool, logger),
		repository.NewProductRepository(pool, logger),
		logger,
	)
	cartServer := httptest.NewServer(router.New(handler.NewCartHandler(cartService, logger), testAPIKey, logger))
	t.Cleanup(cartServer.Close)

	client, err := cartclient.New(cartclient.Config{
		BaseURL:            cartServer.URL,
		APIKey:             testAPIKey,
		Timeout:            5 * time.Second,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: time.Second,
	}, logger)
	require.NoError(t, err)

	notifications := coordinator.NewNotificationLog(20)
	coord := coordinator.New(client, notifications, logger, opts...)
	t.Cleanup(coord.Close)

	storefront := httptest.NewServer(router.NewStorefront(
		handler.NewStorefrontHandler(coord, client, notifications, logger),
		testAPIKey,
		logger,
	))
	t.Cleanup(storefront.Close)

	return &Stack{
		CartService:   cartService,
		CartServer:    cartServer,
		Client:        client,
		Coordinator:   coord,
		Notifications: notifications,
		Storefront:    storefront,
	}
}
