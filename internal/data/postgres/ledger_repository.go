package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labs-ledger-transfer-engine/internal/domain/ledger"
	"github.com/labs-ledger-transfer-engine/internal/platform/persistence"
)

const insertLedgerEntryQuery = `
		INSERT INTO ledger_entries (account_id, entry_type, amount, reference_id, description, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING id`

// LedgerRepository appends ledger entries in PostgreSQL.
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) *LedgerRepository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

var _ ledger.Repository = (*LedgerRepository)(nil)

func (r *LedgerRepository) Create(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	q := persistence.QuerierFromContext(ctx, r.querier)
	err := q.QueryRow(ctx, insertLedgerEntryQuery,
		entry.AccountID,
		entry.Type,
		entry.Amount,
		entry.ReferenceID,
		entry.Description,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		r.logger.Error("Failed to create ledger entry",
			"account_id", entry.AccountID,
			"entry_type", entry.Type,
			"reference_id", entry.ReferenceID,
			"error", err,
		)
		return ledger.Entry{}, fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return entry, nil
}
