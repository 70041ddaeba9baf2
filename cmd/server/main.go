package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mescon/Tickarr/internal/api"
	"github.com/mescon/Tickarr/internal/auth"
	"github.com/mescon/Tickarr/internal/config"
	"github.com/mescon/Tickarr/internal/crypto"
	"github.com/mescon/Tickarr/internal/db"
	"github.com/mescon/Tickarr/internal/eventbus"
	"github.com/mescon/Tickarr/internal/logger"
	"github.com/mescon/Tickarr/internal/metrics"
	"github.com/mescon/Tickarr/internal/notifier"
	"github.com/mescon/Tickarr/internal/services"
	"github.com/mescon/Tickarr/internal/storage"
)

func main() {
	// Define command line flags (these override environment variables)
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.BoolVar(showVersion, "v", false, "Print version and exit (shorthand)")

	// Configuration flags - all can also be set via environment variables (TICKARR_*)
	flagPort := flag.String("port", "", "HTTP server port (env: TICKARR_PORT, default: 3095)")
	flagBasePath := flag.String("base-path", "", "URL base path for reverse proxy (env: TICKARR_BASE_PATH, default: /)")
	flagLogLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (env: TICKARR_LOG_LEVEL, default: info)")
	flagDataDir := flag.String("data-dir", "", "Data directory path (env: TICKARR_DATA_DIR)")
	flagDatabasePath := flag.String("database-path", "", "Database file path (env: TICKARR_DATABASE_PATH)")
	flagTickInterval := flag.Duration("tick-interval", 0, "Time between countdown ticks (env: TICKARR_TICK_INTERVAL, default: 1s)")
	flagRetentionDays := flag.Int("retention-days", -1, "Days to keep timer events, 0 to disable pruning (env: TICKARR_RETENTION_DAYS, default: 30)")
	flagPresetsFile := flag.String("presets-file", "", "YAML or CSV file with timer presets (env: TICKARR_PRESETS_FILE)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("Tickarr %s\n", config.Version)
		os.Exit(0)
	}

	config.Load()

	flagOverrides := config.FlagOverrides{
		Port:         flagPort,
		BasePath:     flagBasePath,
		LogLevel:     flagLogLevel,
		DataDir:      flagDataDir,
		DatabasePath: flagDatabasePath,
		TickInterval: flagTickInterval,
		PresetsFile:  flagPresetsFile,
	}
	// Special handling for retention days: -1 means not set (use default), 0 means disable
	if *flagRetentionDays >= 0 {
		flagOverrides.RetentionDays = flagRetentionDays
	}
	config.ApplyFlags(flagOverrides)
	cfg := config.Get()

	if err := logger.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize file logging: %v\n", err)
	}
	logger.SetLevel(cfg.LogLevel)

	logger.Infof("========================================")
	logger.Infof("Starting Tickarr %s...", config.Version)
	logger.Infof("========================================")

	logger.Infof("Configuration:")
	logger.Infof("  Port: %s", cfg.Port)
	logger.Infof("  Base Path: %s", cfg.BasePath)
	logger.Infof("  Log Level: %s", cfg.LogLevel)
	logger.Infof("  Data Directory: %s", cfg.DataDir)
	logger.Infof("  Database: %s", cfg.DatabasePath)
	logger.Infof("  Tick Interval: %s", cfg.TickInterval)
	logger.Infof("  Presets: %d", len(cfg.Presets))
	if cfg.RetentionDays > 0 {
		logger.Infof("  Event Retention: %d days", cfg.RetentionDays)
	} else {
		logger.Infof("  Event Retention: disabled (no automatic pruning)")
	}

	logger.Infof("Initializing database: %s", cfg.DatabasePath)
	repo, err := db.NewRepository(cfg.DatabasePath)
	if err != nil {
		logger.Errorf("Failed to initialize database: %v", err)
		os.Exit(1)
	}
	logger.Infof("✓ Database initialized successfully")

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		logger.Errorf("Failed to initialize storage encryption: %v", err)
		os.Exit(1)
	}
	store := storage.New(repo.DB, cfg.StoragePrefix, storage.WithSealer(sealer))
	if sealer.Enabled() {
		logger.Infof("✓ Storage initialized (values encrypted at rest)")
	} else {
		logger.Infof("✓ Storage initialized")
	}

	eb := eventbus.NewEventBus(repo.DB)
	logger.Infof("✓ Event Bus initialized")

	timers := services.NewTimerService(eb, store, cfg.TickInterval)

	// Subscribers must be in place before recovery publishes pause events
	metricsService := metrics.NewMetricsService(eb, timers, eb)
	metricsService.Start()
	logger.Infof("✓ Metrics Service (Prometheus endpoint at /metrics)")

	notifierService, err := notifier.NewNotifier(eb, notifier.Config{
		URLs:     cfg.NotifyURLs,
		Events:   cfg.NotifyEvents,
		Throttle: cfg.NotifyThrottle,
		Breaker: notifier.BreakerConfig{
			FailureThreshold: cfg.NotifyFailureThreshold,
			ResetTimeout:     cfg.NotifyRetryAfter,
		},
	})
	if err != nil {
		// Non-fatal - continue without notifications
		logger.Errorf("Failed to configure notifications: %v", err)
		notifierService = nil
	} else if err := notifierService.ValidateURLs(); err != nil {
		logger.Errorf("%v", err)
		notifierService = nil
	} else {
		notifierService.Start()
	}

	logger.Infof("Restoring timers from the event store...")
	if _, err := services.NewRecoveryService(repo.DB, timers).Run(); err != nil {
		logger.Errorf("Timer recovery failed: %v", err)
	}

	schedulerService := services.NewSchedulerService()
	if err := schedulerService.RegisterDefaults(store, repo, cfg.RetentionDays); err != nil {
		logger.Errorf("Failed to register maintenance jobs: %v", err)
		os.Exit(1)
	}
	schedulerService.Start()
	logger.Infof("✓ Scheduler Service (storage expiry and event pruning)")

	generated, err := auth.EnsureAPIKey(repo, cfg.APIKey)
	if err != nil {
		logger.Errorf("Failed to set up API key: %v", err)
		os.Exit(1)
	}
	if generated != "" {
		logger.Infof("========================================")
		logger.Infof("Generated API key (shown once): %s", generated)
		logger.Infof("========================================")
	}

	logger.Infof("Initializing REST API and WebSocket server...")
	apiServer := api.NewRESTServer(api.ServerDeps{
		Config:    cfg,
		Repo:      repo,
		EventBus:  eb,
		Timers:    timers,
		Store:     store,
		Scheduler: schedulerService,
		Metrics:   metricsService,
		Notifier:  notifierService,
		Verifier:  auth.NewVerifier(repo),
	})
	go func() {
		addr := ":" + cfg.Port
		if err := apiServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Failed to start API server: %v", err)
			os.Exit(1)
		}
	}()

	logger.Infof("========================================")
	logger.Infof("✓ Tickarr %s started successfully", config.Version)
	logger.Infof("✓ Server listening on port %s", cfg.Port)
	logger.Infof("========================================")

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Infof("Received signal %v, initiating graceful shutdown...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown in reverse order of startup
	logger.Infof("Stopping API Server...")
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API Server shutdown error: %v", err)
	} else {
		logger.Infof("✓ API Server stopped")
	}

	schedulerService.Stop()
	logger.Infof("✓ Scheduler Service stopped")

	timers.Stop()

	eb.Shutdown()
	logger.Infof("✓ Event Bus stopped")

	if err := repo.Close(); err != nil {
		logger.Errorf("Failed to close database connection: %v", err)
	} else {
		logger.Infof("✓ Database connection closed")
	}

	logger.Infof("✓ Tickarr shutdown complete")
	_ = logger.Close()
}
