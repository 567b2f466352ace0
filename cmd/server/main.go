package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koios/octodash/internal/config"
	"github.com/koios/octodash/internal/handlers"
	"github.com/koios/octodash/internal/redis"
	"github.com/koios/octodash/internal/settings"
	"github.com/koios/octodash/pkg/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open settings store", zap.String("backend", cfg.Settings.Backend), zap.Error(err))
	}
	defer closeStore()

	manager, err := settings.NewManager(ctx, store, cfg.OctoPrint.UpstreamTimeout(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize settings", zap.Error(err))
	}

	feed := handlers.NewStatusFeed(manager, cfg.Feed.PollInterval, logger)
	router := handlers.NewRouter(
		handlers.NewRelayHandler(manager, logger),
		handlers.NewHealthHandler(manager, storeChecker(store), logger),
		feed,
		cfg.Server.StaticDir,
		logger,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()

	logger.Info("Server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("settings_backend", cfg.Settings.Backend),
		zap.Duration("poll_interval", cfg.Feed.PollInterval),
		zap.String("static_dir", cfg.Server.StaticDir))

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Hijacked WebSocket connections are not tracked by Shutdown
	feed.Close()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	cancel()
	logger.Info("Server shutdown complete")
}

// newLogger builds a production logger at the given level
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// storeChecker returns store as a health check when it has a remote dependency
func storeChecker(store settings.Store) handlers.StoreChecker {
	if checker, ok := store.(handlers.StoreChecker); ok {
		return checker
	}
	return nil
}

// openStore picks the settings backend. The returned func releases it.
func openStore(cfg *config.Config, logger *zap.Logger) (settings.Store, func(), error) {
	defaults := models.ConnectionSettings{
		ServerURL: cfg.OctoPrint.DefaultURL,
		APIKey:    cfg.OctoPrint.DefaultAPIKey,
	}
	noop := func() {}

	switch cfg.Settings.Backend {
	case config.BackendMemory:
		return settings.NewMemoryStore(defaults), noop, nil

	case config.BackendRedis:
		store, err := redis.NewSettingsStore(cfg.Redis, defaults, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close Redis settings store", zap.Error(err))
			}
		}, nil

	default:
		store := settings.NewFileStore(cfg.Settings.Path, defaults, logger)
		logger.Info("Using file settings store", zap.String("path", store.Path()))
		return store, noop, nil
	}
}
