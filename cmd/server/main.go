package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "penguin-ternos-backend/internal/api/http"
	"penguin-ternos-backend/internal/cache"
	"penguin-ternos-backend/internal/config"
	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/logger"
	"penguin-ternos-backend/internal/observability"
	"penguin-ternos-backend/internal/repository"
	"penguin-ternos-backend/internal/repository/memory"
	"penguin-ternos-backend/internal/repository/postgres"
	"penguin-ternos-backend/internal/service"
)

// repositories is the set of repositories shared by both store backends.
type repositories struct {
	items    repository.ItemRepository
	rentals  repository.RentalRepository
	sales    repository.SaleRepository
	settings repository.SettingsRepository
	suits    repository.SuitRepository
	close    func() error
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			items:    store.ItemRepository,
			rentals:  store.RentalRepository,
			sales:    store.SaleRepository,
			settings: store.SettingsRepository,
			suits:    store.SuitRepository,
			close:    func() error { return nil },
		}, nil
	}

	logger.Debug("Connecting to database...", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "database", cfg.Database.Database)
	db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.GetDatabaseConnectionString(), cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection established")

	if cfg.Database.MigrationsDir != "" {
		if err := postgres.RunMigrations(ctx, db, cfg.Database.MigrationsDir); err != nil {
			db.Close()
			return nil, err
		}
	}

	store := postgres.NewStore(db, postgres.Options{
		RetryAttempts:    cfg.Database.RetryAttempts,
		ReturnProcedures: cfg.Database.ReturnProcedures,
	})
	return &repositories{
		items:    store.ItemRepository,
		rentals:  store.RentalRepository,
		sales:    store.SaleRepository,
		settings: store.SettingsRepository,
		suits:    store.SuitRepository,
		close:    db.Close,
	}, nil
}

// openIdempotencyStore uses redis when an address is configured and an
// in-process map otherwise.
func openIdempotencyStore(cfg *config.Config) (cache.IdempotencyStore, func() error, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("Using in-memory idempotency store")
		return cache.NewMemoryIdempotencyStore(), func() error { return nil }, nil
	}
	client, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Redis connection established", "addr", cfg.Redis.Addr)
	store := cache.NewRedisIdempotencyStore(client)
	return store, store.Close, nil
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Penguin Ternos backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracing
	shutdownTracing, err := observability.SetupTracingSDK(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("Failed to flush traces", "error", err)
		}
	}()

	// Initialize Repositories
	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err)
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer repos.close()

	idempotency, closeIdempotency, err := openIdempotencyStore(cfg)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer closeIdempotency()

	// Initialize Services
	hold := domain.HoldPolicy{Complete: cfg.CompleteHold(), Damaged: cfg.DamagedHold()}
	settingsSvc := service.NewSettingsService(repos.settings)
	rentalSvc := service.NewRentalService(repos.rentals, settingsSvc, hold, nil)
	saleSvc := service.NewSaleService(repos.sales, repos.items, nil)
	inventorySvc := service.NewInventoryService(repos.items, repos.suits, hold, nil)

	// Initialize HTTP handlers
	router := httpapi.NewRouter(httpapi.Handlers{
		Rentals: httpapi.NewRentalHandler(rentalSvc),
		Sales:   httpapi.NewSaleHandler(saleSvc),
		Items:   httpapi.NewItemHandler(inventorySvc),
		Config:  httpapi.NewConfigHandler(settingsSvc),
	}, httpapi.RouterOptions{
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL(),
	})

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		logger.Info("Shutting down HTTP server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", "error", err)
	}
	logger.Info("HTTP server stopped. Goodbye!")
}
