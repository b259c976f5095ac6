// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository resolves its querier from the context, so calls made inside
// persistence.TxExecutor run in that transaction and all others use the pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/labs-ledger-transfer-engine/internal/domain/account"
	"github.com/labs-ledger-transfer-engine/internal/platform/persistence"
)

const (
	selectAccountQuery = `
		SELECT id, owner_name, balance, status, version, created_at, updated_at
		FROM accounts
		WHERE id = $1`

	lockAccountQuery = selectAccountQuery + `
		FOR UPDATE`

	// ascending id order is the global lock order for multi-account transactions
	lockAccountsQuery = `
		SELECT id, owner_name, balance, status, version, created_at, updated_at
		FROM accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	updateAccountQuery = `
		UPDATE accounts
		SET owner_name = $1, balance = $2, status = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7`
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) *AccountRepository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

var _ account.Repository = (*AccountRepository)(nil)

func (r *AccountRepository) q(ctx context.Context) persistence.Querier {
	return persistence.QuerierFromContext(ctx, r.querier)
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (account.Account, error) {
	return r.getOne(ctx, selectAccountQuery, id, "get account")
}

// GetByIDForUpdate obtains a pessimistic lock on the account and returns its current state.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, id int64) (account.Account, error) {
	return r.getOne(ctx, lockAccountQuery, id, "lock account for update")
}

func (r *AccountRepository) getOne(ctx context.Context, query string, id int64, op string) (account.Account, error) {
	acc, err := scanAccount(r.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.NotFound(id)
		}
		r.logger.Error("Failed to "+op, "id", id, "error", err)
		return account.Account{}, fmt.Errorf("failed to %s: %w", op, err)
	}
	return acc, nil
}

// GetByIDsForUpdate locks every existing account in ids with one statement.
func (r *AccountRepository) GetByIDsForUpdate(ctx context.Context, ids []int64) ([]account.Account, error) {
	rows, err := r.q(ctx).Query(ctx, lockAccountsQuery, ids)
	if err != nil {
		r.logger.Error("Failed to lock accounts for update", "ids", ids, "error", err)
		return nil, fmt.Errorf("failed to lock accounts for update: %w", err)
	}
	defer rows.Close()

	accounts := make([]account.Account, 0, len(ids))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			r.logger.Error("Failed to scan account", "error", err)
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over locked accounts", "error", err)
		return nil, fmt.Errorf("error iterating over locked accounts: %w", err)
	}

	return accounts, nil
}

// Update persists acc if nobody changed the row since it was read at acc.Version-1.
func (r *AccountRepository) Update(ctx context.Context, acc account.Account) (account.Account, error) {
	result, err := r.q(ctx).Exec(ctx, updateAccountQuery,
		acc.OwnerName,
		acc.Balance,
		acc.Status,
		acc.Version,
		acc.UpdatedAt,
		acc.ID,
		acc.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update account", "id", acc.ID, "error", err)
		return account.Account{}, fmt.Errorf("failed to update account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.Account{}, account.ErrConcurrentModification{AccountID: acc.ID}
	}

	return acc, nil
}

func scanAccount(row pgx.Row) (account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID,
		&acc.OwnerName,
		&acc.Balance,
		&acc.Status,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	return acc, err
}
