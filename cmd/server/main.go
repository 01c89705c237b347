// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/tomtom215/recsync/docs" // Import generated swagger docs
	"github.com/tomtom215/recsync/internal/api"
	"github.com/tomtom215/recsync/internal/auth"
	"github.com/tomtom215/recsync/internal/authz"
	"github.com/tomtom215/recsync/internal/catalog"
	"github.com/tomtom215/recsync/internal/config"
	"github.com/tomtom215/recsync/internal/eventprocessor"
	"github.com/tomtom215/recsync/internal/logging"
	"github.com/tomtom215/recsync/internal/metrics"
	"github.com/tomtom215/recsync/internal/recommend"
	"github.com/tomtom215/recsync/internal/store"
	"github.com/tomtom215/recsync/internal/supervisor"
	"github.com/tomtom215/recsync/internal/supervisor/services"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Bool("intake_enabled", cfg.NATS.Enabled).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Starting Recsync with supervisor tree")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin in production; set CORS_ORIGINS")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === FEATURE STORE ===
	db, items, profiles, err := initStores(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open feature store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing feature store")
		}
	}()

	// === EVENT HANDLING ===
	decoder, err := eventprocessor.NewDecoder(topicMap(cfg.Topics))
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid topic configuration")
	}
	handlers := eventprocessor.NewHandlers(items, profiles, cfg.Weights)
	replay := handlers.Replay(decoder)

	dlq, closeDLQ, err := initDLQ(ctx, &cfg.DLQ)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize DLQ")
	}
	defer closeDLQ()

	health := eventprocessor.NewHealthChecker(eventprocessor.DefaultHealthConfig())
	health.RegisterComponent("dlq", dlq)

	var intake *IntakeComponents
	var redriver eventprocessor.Redriver
	if cfg.NATS.Enabled {
		intake = NewIntakeComponents(cfg, decoder, handlers, dlq, health)
		redriver = intake
	} else {
		logging.Info().Msg("Event intake disabled (NATS_ENABLED=false), serving reads only")
	}
	dlqAdmin := eventprocessor.NewDLQAdmin(dlq, replay, redriver, cfg.DLQ.MaxRetries)

	// === RETRIEVAL ===
	localCache := catalog.NewLocalCache(localCacheSize, localCacheTTL)
	meta, redisClient := initCatalog(ctx, cfg, localCache, health)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing Redis client")
			}
		}()
	}

	engine, err := recommend.NewEngine(&recommend.Config{
		DefaultLimit:      cfg.Recommend.DefaultLimit,
		MaxLimit:          cfg.Recommend.MaxLimit,
		TopUp:             cfg.Recommend.TopUp,
		EnrichmentTimeout: cfg.Recommend.EnrichmentTimeout,
	}, items, meta, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation engine")
	}

	// === AUTHENTICATION / AUTHORIZATION ===
	authMode, err := auth.ParseAuthMode(cfg.Security.AuthMode)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid auth mode")
	}

	var jwtManager *auth.JWTManager
	switch authMode {
	case auth.AuthModeJWT:
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		logging.Info().Msg("JWT authentication enabled")
	case auth.AuthModeNone:
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  The caller is taken from the X-User-ID header and every")
		logging.Warn().Msg("  request runs with the admin role, DLQ endpoints included.")
		logging.Warn().Msg("  NEVER use AUTH_MODE=none in production or on public networks!")
		logging.Warn().Msg("============================================================")
	}

	secLog := logging.NewSecurityLogger()
	authMiddleware, err := auth.NewMiddleware(&auth.MiddlewareConfig{
		AuthMode:       authMode,
		JWTManager:     jwtManager,
		DefaultRole:    cfg.Security.Casbin.DefaultRole,
		SecurityLogger: secLog,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create authentication middleware")
	}

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfigFrom(&cfg.Security.Casbin))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create authorization enforcer")
	}
	defer enforcer.Close()
	authzMiddleware := authz.NewMiddleware(enforcer, secLog)

	// === HTTP ===
	handler := api.NewHandler(engine, dlqAdmin, health)
	router := api.NewRouter(handler,
		api.NewChiMiddlewareFromConfig(&cfg.Security),
		authMiddleware.Authenticate,
		authzMiddleware.AuthorizeRequest,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// === SUPERVISOR TREE ===
	// Create structured logger for supervisor using our slog adapter
	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Storage layer: maintenance loops
	tree.AddStorageService(store.NewGCService(db))
	tree.AddStorageService(services.NewPeriodicService(itemCountTask(items), services.PeriodicServiceConfig{
		Name:       "item-count",
		Interval:   time.Minute,
		RunOnStart: true,
	}, logging.Logger()))
	tree.AddStorageService(services.NewPeriodicService(localCache.Sweep, services.PeriodicServiceConfig{
		Name:     "catalog-cache-sweep",
		Interval: localCacheTTL,
	}, logging.Logger()))

	// Intake layer: broker consumption and DLQ redrive
	if intake != nil {
		tree.AddIntakeService(services.NewNATSComponentsServiceWithTimeout(intake, cfg.NATS.RouterCloseTimeout))
		logging.Info().Msg("Event intake added to supervisor tree")
	}
	tree.AddIntakeService(eventprocessor.NewAutoRetryWorker(dlq, replay, autoRetryConfigFrom(&cfg.DLQ)))

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Hot-reload the log level from the config file
	if path := config.ConfigFilePath(); path != "" {
		if err := config.WatchConfigFile(path, reloadLogLevel); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file watch disabled")
		}
	}

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// itemCountTask refreshes the stored item gauge.
func itemCountTask(items *store.ItemStore) services.Task {
	return func(ctx context.Context) (int, error) {
		n, err := items.Count(ctx)
		if err != nil {
			return 0, err
		}
		metrics.UpdateStoreItems(n)
		return n, nil
	}
}

// reloadLogLevel re-reads the configuration and applies logging.level.
// Other settings need a restart.
func reloadLogLevel() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Warn().Err(err).Msg("Config reload failed, keeping current settings")
		return
	}
	logging.SetLevelString(cfg.Logging.Level)
	logging.Info().Str("level", cfg.Logging.Level).Msg("Log level reloaded")
}
