package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edvin/fleet/internal/api"
	"github.com/edvin/fleet/internal/config"
	"github.com/edvin/fleet/internal/core"
	"github.com/edvin/fleet/internal/db"
	"github.com/edvin/fleet/internal/device"
	"github.com/edvin/fleet/internal/dynconfig"
	"github.com/edvin/fleet/internal/logging"
	"github.com/edvin/fleet/internal/metrics"
	"github.com/edvin/fleet/internal/notify"
	"github.com/edvin/fleet/internal/scheduler"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("fleet-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.NATSURL != "" {
		nn, err := notify.NewNATSNotifier(cfg.NATSURL, cfg.NATSSubjectPrefix, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nn.Close()
		notifier = nn
	}

	devices := device.NewClient(cfg.DeviceAPIBaseURL, cfg.DeviceAPIAccessKey, cfg.DeviceAPISecretKey, cfg.DevicePackageName)

	services := core.NewServices(pool, devices, notifier, logger)

	store := dynconfig.NewStore(services.ConfigEntry, logger)

	pollInterval := scheduler.StartupInterval(ctx, store, cfg.CleanupPollInterval)
	sched, err := scheduler.New(services.CleanupTask, pollInterval, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create cleanup scheduler")
	}
	sched.WatchInterval(store)
	if err := sched.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start cleanup scheduler")
	}

	srv := api.NewServer(logger, pool, services, store, devices)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting fleet API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	if err := sched.Stop(); err != nil {
		logger.Error().Err(err).Msg("scheduler shutdown failed")
	}
}
