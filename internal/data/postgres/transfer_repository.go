package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/labs-ledger-transfer-engine/internal/platform/persistence"
)

const uniqueViolation = "23505"

const (
	selectTransferByKeyQuery = `
		SELECT id, idempotency_key, from_account_id, to_account_id, amount, status,
		       COALESCE(failure_reason, ''), COALESCE(description, ''), created_at, updated_at
		FROM transfers
		WHERE idempotency_key = $1`

	insertTransferQuery = `
		INSERT INTO transfers (idempotency_key, from_account_id, to_account_id, amount, status, failure_reason, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		RETURNING id`

	updateTransferQuery = `
		UPDATE transfers
		SET status = $1, failure_reason = NULLIF($2, ''), updated_at = $3
		WHERE id = $4`
)

// TransferRepository implements the transfer.Repository interface for PostgreSQL
type TransferRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewTransferRepository(logger *slog.Logger, db *persistence.PostgresDB) *TransferRepository {
	return &TransferRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

var _ transfer.Repository = (*TransferRepository)(nil)

func (r *TransferRepository) q(ctx context.Context) persistence.Querier {
	return persistence.QuerierFromContext(ctx, r.querier)
}

// GetByIdempotencyKey returns nil, nil when no transfer was recorded under key.
func (r *TransferRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transfer.Transfer, error) {
	var t transfer.Transfer
	err := r.q(ctx).QueryRow(ctx, selectTransferByKeyQuery, key).Scan(
		&t.ID,
		&t.IdempotencyKey,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.Amount,
		&t.Status,
		&t.FailureReason,
		&t.Description,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get transfer by idempotency key", "idempotency_key", key, "error", err)
		return nil, fmt.Errorf("failed to get transfer by idempotency key: %w", err)
	}

	return &t, nil
}

// Create inserts t. A unique violation on the idempotency key becomes a DuplicateTransfer error.
func (r *TransferRepository) Create(ctx context.Context, t transfer.Transfer) (transfer.Transfer, error) {
	err := r.q(ctx).QueryRow(ctx, insertTransferQuery,
		t.IdempotencyKey,
		t.FromAccountID,
		t.ToAccountID,
		t.Amount,
		t.Status,
		t.FailureReason,
		t.Description,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return transfer.Transfer{}, shared.NewBusinessError(shared.ErrorKindDuplicateTransfer,
				"Transfer with idempotency key %s already exists", t.IdempotencyKey)
		}
		r.logger.Error("Failed to create transfer", "idempotency_key", t.IdempotencyKey, "error", err)
		return transfer.Transfer{}, fmt.Errorf("failed to create transfer: %w", err)
	}

	return t, nil
}

// Update persists the lifecycle fields of t.
func (r *TransferRepository) Update(ctx context.Context, t transfer.Transfer) (transfer.Transfer, error) {
	result, err := r.q(ctx).Exec(ctx, updateTransferQuery, t.Status, t.FailureReason, t.UpdatedAt, t.ID)
	if err != nil {
		r.logger.Error("Failed to update transfer", "id", t.ID, "status", t.Status, "error", err)
		return transfer.Transfer{}, fmt.Errorf("failed to update transfer: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transfer.Transfer{}, fmt.Errorf("failed to update transfer: no row with id %d", t.ID)
	}

	return t, nil
}
