package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/domain/account"
	"github.com/labs-ledger-transfer-engine/internal/domain/ledger"
	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/labs-ledger-transfer-engine/internal/logger"
	"github.com/labs-ledger-transfer-engine/internal/metrics"
)

const DefaultRequestTimeout = 60 * time.Second

// Reason codes for TRANSFER_FAILED_SYSTEM audit events.
const (
	ReasonCodeTimeout         = "TIMEOUT"
	ReasonCodeVersionConflict = "OPTIMISTIC_LOCK_FAILED"
	ReasonCodeInfrastructure  = "INFRASTRUCTURE_ERROR"
)

// TransferService executes idempotent transfers between two accounts.
//
// A key that already reached a terminal state, in memory or in the store, is answered
// without touching balances. Otherwise one transaction inserts the PENDING row, locks both
// accounts in ascending id order, moves the money, writes the DEBIT/CREDIT pair and completes
// the transfer. Business rejections are registered in memory and returned at once; their
// durable record is written in the background.
type TransferService struct {
	txExecutor     TransactionExecutor
	accounts       account.Repository
	transfers      transfer.Repository
	ledger         ledger.Repository
	registry       FailureRegistry
	durability     *FailureDurability
	requestTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

var _ TransferExecutor = (*TransferService)(nil)

func NewTransferService(
	txExecutor TransactionExecutor,
	accounts account.Repository,
	transfers transfer.Repository,
	ledgerRepo ledger.Repository,
	registry FailureRegistry,
	durability *FailureDurability,
	requestTimeout time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TransferService {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &TransferService{
		txExecutor:     txExecutor,
		accounts:       accounts,
		transfers:      transfers,
		ledger:         ledgerRepo,
		registry:       registry,
		durability:     durability,
		requestTimeout: requestTimeout,
		metrics:        m,
		logger:         logger.With("component", "transfer_service"),
	}
}

func (s *TransferService) Execute(ctx context.Context, cmd transfer.Command) (transfer.Transfer, error) {
	start := time.Now()
	result, outcome, err := s.execute(ctx, cmd)
	s.metrics.ObserveTransfer(outcome, time.Since(start))
	return result, err
}

func (s *TransferService) execute(ctx context.Context, cmd transfer.Command) (transfer.Transfer, string, error) {
	log := s.logger.With("idempotency_key", cmd.IdempotencyKey)
	if id := logger.CorrelationID(ctx); id != "" {
		log = log.With("correlation_id", id)
	}

	pending, err := transfer.New(cmd)
	if err != nil {
		return transfer.Transfer{}, metrics.OutcomeInvalid, err
	}

	if record, ok := s.registry.Get(pending.IdempotencyKey); ok {
		log.Info("Served transfer from failure registry", "status", record.Transfer.Status)
		return record.Transfer, metrics.OutcomeReplayed, nil
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	existing, err := s.resolveExisting(attemptCtx, pending.IdempotencyKey)
	if err != nil {
		return s.handleFailure(ctx, attemptCtx, log, pending, err)
	}
	if existing != nil {
		log.Info("Served transfer from store", "transfer_id", existing.ID, "status", existing.Status)
		return *existing, metrics.OutcomeReplayed, nil
	}

	var (
		result   transfer.Transfer
		replayed bool
	)
	err = s.txExecutor.Execute(attemptCtx, func(txCtx context.Context) error {
		// closes the window between the fast-path lookup and this transaction
		existing, err := s.resolveExisting(txCtx, pending.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			result, replayed = *existing, true
			return nil
		}

		result, err = s.apply(txCtx, pending)
		return err
	})
	if err != nil {
		return s.handleFailure(ctx, attemptCtx, log, pending, err)
	}
	if replayed {
		log.Info("Served transfer from store inside transaction", "transfer_id", result.ID, "status", result.Status)
		return result, metrics.OutcomeReplayed, nil
	}

	log.Info("Transfer completed",
		"transfer_id", result.ID,
		"from_account_id", result.FromAccountID,
		"to_account_id", result.ToAccountID,
		"amount", result.Amount.String(),
	)
	s.durability.RecordCompleted(ctx, result)
	return result, metrics.OutcomeCompleted, nil
}

// resolveExisting returns a terminal transfer for key, nil when none exists,
// or DuplicateTransfer while another attempt holds a PENDING row.
func (s *TransferService) resolveExisting(ctx context.Context, key string) (*transfer.Transfer, error) {
	existing, err := s.transfers.GetByIdempotencyKey(ctx, key)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.Status == transfer.StatusPending {
		return nil, shared.NewBusinessError(shared.ErrorKindDuplicateTransfer,
			"Transfer with idempotency key %s is already in progress", key)
	}
	return existing, nil
}

func (s *TransferService) apply(ctx context.Context, pending transfer.Transfer) (transfer.Transfer, error) {
	created, err := s.transfers.Create(ctx, pending)
	if err != nil {
		return transfer.Transfer{}, err
	}

	locked, err := s.accounts.GetByIDsForUpdate(ctx, created.SortedAccountIDs())
	if err != nil {
		return transfer.Transfer{}, err
	}
	byID := make(map[int64]account.Account, len(locked))
	for _, acc := range locked {
		byID[acc.ID] = acc
	}

	from, ok := byID[created.FromAccountID]
	if !ok {
		return transfer.Transfer{}, shared.NewBusinessError(shared.ErrorKindAccountNotFound, "From account not found: %d", created.FromAccountID)
	}
	to, ok := byID[created.ToAccountID]
	if !ok {
		return transfer.Transfer{}, shared.NewBusinessError(shared.ErrorKindAccountNotFound, "To account not found: %d", created.ToAccountID)
	}

	debited, err := from.Withdraw(created.Amount)
	if err != nil {
		return transfer.Transfer{}, err
	}
	credited, err := to.Deposit(created.Amount)
	if err != nil {
		return transfer.Transfer{}, err
	}

	if _, err := s.accounts.Update(ctx, debited); err != nil {
		return transfer.Transfer{}, err
	}
	if _, err := s.accounts.Update(ctx, credited); err != nil {
		return transfer.Transfer{}, err
	}

	if err := s.writeLedgerPair(ctx, created); err != nil {
		return transfer.Transfer{}, err
	}

	completed, err := created.Complete()
	if err != nil {
		return transfer.Transfer{}, err
	}
	return s.transfers.Update(ctx, completed)
}

func (s *TransferService) writeLedgerPair(ctx context.Context, t transfer.Transfer) error {
	debitDesc, creditDesc := t.Description, t.Description
	if t.Description == "" {
		debitDesc = fmt.Sprintf("Transfer to account %d", t.ToAccountID)
		creditDesc = fmt.Sprintf("Transfer from account %d", t.FromAccountID)
	}

	debit, err := ledger.NewEntry(t.FromAccountID, ledger.EntryTypeDebit, t.Amount, t.IdempotencyKey, debitDesc)
	if err != nil {
		return err
	}
	credit, err := ledger.NewEntry(t.ToAccountID, ledger.EntryTypeCredit, t.Amount, t.IdempotencyKey, creditDesc)
	if err != nil {
		return err
	}

	if _, err := s.ledger.Create(ctx, debit); err != nil {
		return err
	}
	_, err = s.ledger.Create(ctx, credit)
	return err
}

func (s *TransferService) handleFailure(ctx, attemptCtx context.Context, log *slog.Logger, pending transfer.Transfer, err error) (transfer.Transfer, string, error) {
	switch {
	case isRecordedBusinessFailure(err):
		log.Info("Transfer rejected", "reason", err.Error(), "kind", shared.KindOf(err))
		s.recordBusinessFailure(ctx, log, pending, err)
		return transfer.Transfer{}, metrics.OutcomeFailedBusiness, err

	case errors.Is(err, shared.ErrDuplicateTransfer):
		log.Info("Transfer already in progress")
		return transfer.Transfer{}, metrics.OutcomeDuplicate, err

	case shared.IsBusinessError(err):
		log.Warn("Transfer rejected by unexpected business rule", "error", err)
		return transfer.Transfer{}, metrics.OutcomeInvalid, err

	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		timeoutErr := fmt.Errorf("%w after %s: %w", shared.ErrTransferTimeout, s.requestTimeout, err)
		log.Warn("Transfer timed out", "timeout", s.requestTimeout, "error", err)
		s.durability.RecordSystemFailure(ctx, pending, ReasonCodeTimeout, timeoutErr)
		return transfer.Transfer{}, metrics.OutcomeTimeout, timeoutErr

	case shared.IsOptimisticLockConflict(err):
		log.Warn("Transfer aborted by concurrent account modification", "error", err)
		s.durability.RecordSystemFailure(ctx, pending, ReasonCodeVersionConflict, err)
		return transfer.Transfer{}, metrics.OutcomeConflict, err

	default:
		log.Error("Failed to execute transfer", "error", err)
		s.durability.RecordSystemFailure(ctx, pending, ReasonCodeInfrastructure, err)
		return transfer.Transfer{}, metrics.OutcomeError, fmt.Errorf("failed to execute transfer: %w", err)
	}
}

func (s *TransferService) recordBusinessFailure(ctx context.Context, log *slog.Logger, pending transfer.Transfer, cause error) {
	failed, err := pending.Fail(cause.Error())
	if err != nil {
		log.Error("Failed to build failed transfer", "error", err)
		return
	}
	record := transfer.NewFailureRecord(failed, cause.Error())
	s.registry.Register(failed.IdempotencyKey, record)
	s.durability.PersistFailure(ctx, record, cause)
}

// isRecordedBusinessFailure reports whether err is a rejection that becomes a FAILED transfer.
func isRecordedBusinessFailure(err error) bool {
	return errors.Is(err, shared.ErrInsufficientBalance) ||
		errors.Is(err, shared.ErrAccountNotFound) ||
		errors.Is(err, shared.ErrInvalidAccountStatus) ||
		errors.Is(err, shared.ErrInvalidAmount)
}
