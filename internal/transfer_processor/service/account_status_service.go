package service

import (
	"context"
	"log/slog"

	"github.com/labs-ledger-transfer-engine/internal/domain/account"
	"github.com/labs-ledger-transfer-engine/internal/platform/retry"
)

// AccountStatusService applies SUSPEND / ACTIVATE / CLOSE transitions.
type AccountStatusService struct {
	txExecutor  TransactionExecutor
	accounts    account.Repository
	maxAttempts int
	logger      *slog.Logger
}

var _ AccountStatusUpdater = (*AccountStatusService)(nil)

func NewAccountStatusService(txExecutor TransactionExecutor, accounts account.Repository, maxAttempts int, logger *slog.Logger) *AccountStatusService {
	return &AccountStatusService{
		txExecutor:  txExecutor,
		accounts:    accounts,
		maxAttempts: maxAttempts,
		logger:      logger.With("component", "account_status_service"),
	}
}

func (s *AccountStatusService) Execute(ctx context.Context, accountID int64, target account.Status) (account.Account, error) {
	var updated account.Account
	err := retry.OnOptimisticLock(ctx, s.maxAttempts, func(ctx context.Context) error {
		return s.txExecutor.Execute(ctx, func(txCtx context.Context) error {
			acc, err := s.accounts.GetByIDForUpdate(txCtx, accountID)
			if err != nil {
				return err
			}
			next, err := acc.TransitionTo(target)
			if err != nil {
				return err
			}
			updated, err = s.accounts.Update(txCtx, next)
			return err
		})
	})
	if err != nil {
		s.logger.Info("Account status change rejected", "account_id", accountID, "target_status", target, "error", err)
		return account.Account{}, err
	}

	s.logger.Info("Account status changed", "account_id", accountID, "status", updated.Status, "version", updated.Version)
	return updated, nil
}
