package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/labs-ledger-transfer-engine/internal/domain/account"
	"github.com/labs-ledger-transfer-engine/internal/domain/ledger"
	"github.com/labs-ledger-transfer-engine/internal/platform/retry"
	"github.com/shopspring/decimal"
)

const defaultDepositDescription = "Deposit"

// DepositService credits one account and records the matching CREDIT entry.
type DepositService struct {
	txExecutor  TransactionExecutor
	accounts    account.Repository
	ledger      ledger.Repository
	maxAttempts int
	logger      *slog.Logger
}

var _ DepositExecutor = (*DepositService)(nil)

func NewDepositService(txExecutor TransactionExecutor, accounts account.Repository, ledgerRepo ledger.Repository, maxAttempts int, logger *slog.Logger) *DepositService {
	return &DepositService{
		txExecutor:  txExecutor,
		accounts:    accounts,
		ledger:      ledgerRepo,
		maxAttempts: maxAttempts,
		logger:      logger.With("component", "deposit_service"),
	}
}

// Execute retries the whole transaction on a version conflict.
func (s *DepositService) Execute(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (account.Account, error) {
	if strings.TrimSpace(description) == "" {
		description = defaultDepositDescription
	}

	var updated account.Account
	err := retry.OnOptimisticLock(ctx, s.maxAttempts, func(ctx context.Context) error {
		return s.txExecutor.Execute(ctx, func(txCtx context.Context) error {
			acc, err := s.accounts.GetByIDForUpdate(txCtx, accountID)
			if err != nil {
				return err
			}

			credited, err := acc.Deposit(amount)
			if err != nil {
				return err
			}
			if updated, err = s.accounts.Update(txCtx, credited); err != nil {
				return err
			}

			entry, err := ledger.NewEntry(accountID, ledger.EntryTypeCredit, amount, "", description)
			if err != nil {
				return err
			}
			_, err = s.ledger.Create(txCtx, entry)
			return err
		})
	})
	if err != nil {
		s.logger.Info("Deposit rejected", "account_id", accountID, "amount", amount.String(), "error", err)
		return account.Account{}, err
	}

	s.logger.Info("Deposit completed", "account_id", accountID, "amount", amount.String(), "balance", updated.Balance.String())
	return updated, nil
}
