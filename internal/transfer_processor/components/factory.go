package components

import (
	"fmt"
	"log/slog"

	"github.com/labs-ledger-transfer-engine/internal/config"
	"github.com/labs-ledger-transfer-engine/internal/domain/account"
	"github.com/labs-ledger-transfer-engine/internal/domain/audit"
	"github.com/labs-ledger-transfer-engine/internal/domain/deadletter"
	"github.com/labs-ledger-transfer-engine/internal/domain/ledger"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/labs-ledger-transfer-engine/internal/metrics"
	"github.com/labs-ledger-transfer-engine/internal/platform/retry"
	"github.com/labs-ledger-transfer-engine/internal/transfer_processor/service"
)

// Repositories groups the storage ports the services depend on.
type Repositories struct {
	Accounts    account.Repository
	Transfers   transfer.Repository
	Ledger      ledger.Repository
	Audits      audit.Repository
	DeadLetters deadletter.Repository
}

// Services is the wired transfer engine.
type Services struct {
	Transfers     *service.TransferService
	Deposits      *service.DepositService
	AccountStatus *service.AccountStatusService
	Registry      *InMemoryFailureRegistry
	Pool          *service.WorkerPool
}

// CreateServices builds the registry, worker pool, durability writer and services.
// notifier may be nil when alert publishing is disabled.
func CreateServices(
	txExecutor service.TransactionExecutor,
	repos Repositories,
	notifier service.FailureNotifier,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg *config.Config,
) (*Services, error) {
	registry := NewInMemoryFailureRegistry(logger, cfg.FailureRegistry.TTL, cfg.FailureRegistry.MaxSize)
	m.RegisterFailureRegistry(func() metrics.RegistryStats {
		s := registry.Stats()
		return metrics.RegistryStats{Hits: s.Hits, Misses: s.Misses, Evictions: s.Evictions, Size: s.Size}
	})

	pool, err := service.NewWorkerPool(service.WorkerPoolConfig{Size: cfg.WorkerPool.Size}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	policy := retry.NewExponentialPolicy(logger, cfg.Retry.MaxAttempts, cfg.Retry.InitialDelay, cfg.Retry.MaxDelay)
	durability := service.NewFailureDurability(
		txExecutor,
		repos.Transfers,
		repos.Audits,
		repos.DeadLetters,
		registry,
		policy,
		pool,
		notifier,
		m,
		logger,
	)

	transfers := service.NewTransferService(
		txExecutor,
		repos.Accounts,
		repos.Transfers,
		repos.Ledger,
		registry,
		durability,
		cfg.Transfer.RequestTimeout,
		m,
		logger,
	)

	logger.Info("Created transfer services",
		"pool_size", cfg.WorkerPool.Size,
		"retry_max_attempts", cfg.Retry.MaxAttempts,
		"request_timeout", cfg.Transfer.RequestTimeout,
	)
	return &Services{
		Transfers:     transfers,
		Deposits:      service.NewDepositService(txExecutor, repos.Accounts, repos.Ledger, cfg.OptimisticLock.MaxAttempts, logger),
		AccountStatus: service.NewAccountStatusService(txExecutor, repos.Accounts, cfg.OptimisticLock.MaxAttempts, logger),
		Registry:      registry,
		Pool:          pool,
	}, nil
}
