package service

import (
	"context"

	"github.com/labs-ledger-transfer-engine/internal/domain/account"
	"github.com/labs-ledger-transfer-engine/internal/domain/deadletter"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/shopspring/decimal"
)

// TransferExecutor executes idempotent transfers.
type TransferExecutor interface {
	Execute(ctx context.Context, cmd transfer.Command) (transfer.Transfer, error)
}

// DepositExecutor credits a single account.
type DepositExecutor interface {
	Execute(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (account.Account, error)
}

// AccountStatusUpdater applies administrative status changes.
type AccountStatusUpdater interface {
	Execute(ctx context.Context, accountID int64, target account.Status) (account.Account, error)
}

// TransactionExecutor runs fn atomically. The context passed to fn carries the transaction.
type TransactionExecutor interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// FailureRegistry holds FAILED transfers in memory while their rows are being made durable.
// Implementations must be safe for concurrent use.
type FailureRegistry interface {
	Register(key string, record transfer.FailureRecord)
	Get(key string) (transfer.FailureRecord, bool)
	Remove(key string)
	Size() int
	Stats() RegistryStats
}

// RegistryStats is a point-in-time view of registry usage.
type RegistryStats struct {
	Hits      int64
	Misses    int64
	HitRate   float64
	Evictions int64
	Size      int
}

// TaskRunner executes detached background tasks.
type TaskRunner interface {
	Submit(task func()) error
}

// FailureNotifier publishes operator alerts for the degraded failure path.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, alert deadletter.Alert) error
}
