package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/labs-ledger-transfer-engine/internal/api"
	"github.com/labs-ledger-transfer-engine/internal/config"
	"github.com/labs-ledger-transfer-engine/internal/data/postgres"
	"github.com/labs-ledger-transfer-engine/internal/logger"
	"github.com/labs-ledger-transfer-engine/internal/metrics"
	"github.com/labs-ledger-transfer-engine/internal/platform/messaging/producers"
	"github.com/labs-ledger-transfer-engine/internal/platform/persistence"
	"github.com/labs-ledger-transfer-engine/internal/transfer_processor/components"
	"github.com/labs-ledger-transfer-engine/internal/transfer_processor/dead_letter_monitor"
	"github.com/labs-ledger-transfer-engine/internal/transfer_processor/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("ledger_service")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Migrations run before the pool is opened
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Alerts are optional; a nil producer means the topic is not configured
	alertProducer, err := producers.NewFailureAlertProducer(log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize failure alert producer", "error", err)
		postgresDB.Close()
		os.Exit(1)
	}
	var notifier service.FailureNotifier
	if alertProducer != nil {
		notifier = alertProducer
	}

	repos := components.Repositories{
		Accounts:    postgres.NewAccountRepository(log, postgresDB),
		Transfers:   postgres.NewTransferRepository(log, postgresDB),
		Ledger:      postgres.NewLedgerRepository(log, postgresDB),
		Audits:      postgres.NewAuditRepository(log, postgresDB),
		DeadLetters: postgres.NewDeadLetterRepository(log, postgresDB),
	}
	txExecutor := persistence.NewTxExecutor(log, postgresDB.Pool())

	services, err := components.CreateServices(txExecutor, repos, notifier, m, log, cfg)
	if err != nil {
		log.Error("Failed to create services", "error", err)
		postgresDB.Close()
		os.Exit(1)
	}

	server := api.NewServer(log, cfg, m, api.Services{
		Transfers:     services.Transfers,
		Deposits:      services.Deposits,
		AccountStatus: services.AccountStatus,
	}, postgresDB)
	log.Info("REST server initialized")

	var monitorPublisher dead_letter_monitor.AlertPublisher
	if alertProducer != nil {
		monitorPublisher = alertProducer
	}
	monitor := dead_letter_monitor.NewMonitor(&cfg.DeadLetterMonitor, repos.DeadLetters, monitorPublisher, m, log)
	monitorCtx, cancelMonitor := context.WithCancel(appCtx)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		monitor.Start(monitorCtx)
	}()

	// Create error channel for server errors
	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	var shutdownErr error
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
		shutdownErr = err
	}

	cancelMonitor()
	<-monitorDone

	// In-flight durability writes get the remaining grace period
	log.Info("Shutting down worker pool", "running_workers", services.Pool.Running())
	services.Pool.Shutdown(cfg.Server.ShutdownTimeout)
	log.Info("Worker pool stopped", "registry_size", services.Registry.Size())

	if alertProducer != nil {
		if err := alertProducer.Close(); err != nil {
			log.Error("Error closing failure alert producer", "error", err)
			shutdownErr = err
		}
	}

	cancelAppCtx()
	postgresDB.Close()

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if shutdownErr != nil {
		log.Error("Server shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
