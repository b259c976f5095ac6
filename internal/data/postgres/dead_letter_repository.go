package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labs-ledger-transfer-engine/internal/domain/deadletter"
	"github.com/labs-ledger-transfer-engine/internal/platform/persistence"
)

const (
	insertDeadLetterQuery = `
		INSERT INTO dead_letter_entries (idempotency_key, event_type, payload, failure_reason, retry_count, processed, created_at, last_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	deadLetterColumns = `id, idempotency_key, event_type, payload, failure_reason, retry_count, processed, processed_at, created_at, last_retry_at`

	selectDeadLetterByKeyAndTypeQuery = `
		SELECT ` + deadLetterColumns + `
		FROM dead_letter_entries
		WHERE idempotency_key = $1 AND event_type = $2
		ORDER BY id DESC
		LIMIT 1`

	selectUnprocessedDeadLettersAfterQuery = `
		SELECT ` + deadLetterColumns + `
		FROM dead_letter_entries
		WHERE processed = FALSE AND id > $1
		ORDER BY id ASC
		LIMIT $2`

	markDeadLetterProcessedQuery = `
		UPDATE dead_letter_entries
		SET processed = TRUE, processed_at = $1
		WHERE id = $2`

	countUnprocessedDeadLettersQuery = `
		SELECT COUNT(*)
		FROM dead_letter_entries
		WHERE processed = FALSE`
)

// DeadLetterRepository implements the deadletter.Repository interface for PostgreSQL
type DeadLetterRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewDeadLetterRepository(logger *slog.Logger, db *persistence.PostgresDB) *DeadLetterRepository {
	return &DeadLetterRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

var _ deadletter.Repository = (*DeadLetterRepository)(nil)

func (r *DeadLetterRepository) q(ctx context.Context) persistence.Querier {
	return persistence.QuerierFromContext(ctx, r.querier)
}

// Create stores a new unprocessed entry.
func (r *DeadLetterRepository) Create(ctx context.Context, entry deadletter.Entry) (deadletter.Entry, error) {
	err := r.q(ctx).QueryRow(ctx, insertDeadLetterQuery,
		entry.IdempotencyKey,
		entry.EventType,
		[]byte(entry.Payload),
		entry.FailureReason,
		entry.RetryCount,
		entry.Processed,
		entry.CreatedAt,
		entry.LastRetryAt,
	).Scan(&entry.ID)
	if err != nil {
		r.logger.Error("Failed to create dead letter entry",
			"idempotency_key", entry.IdempotencyKey,
			"event_type", entry.EventType,
			"error", err,
		)
		return deadletter.Entry{}, fmt.Errorf("failed to create dead letter entry: %w", err)
	}

	return entry, nil
}

// GetByIdempotencyKeyAndType returns the newest entry of eventType for key, or nil, nil.
func (r *DeadLetterRepository) GetByIdempotencyKeyAndType(ctx context.Context, key string, eventType deadletter.EventType) (*deadletter.Entry, error) {
	entry, err := scanDeadLetter(r.q(ctx).QueryRow(ctx, selectDeadLetterByKeyAndTypeQuery, key, eventType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get dead letter entry", "idempotency_key", key, "event_type", eventType, "error", err)
		return nil, fmt.Errorf("failed to get dead letter entry: %w", err)
	}

	return &entry, nil
}

// GetUnprocessedAfter retrieves the next page of unprocessed entries past afterID.
func (r *DeadLetterRepository) GetUnprocessedAfter(ctx context.Context, afterID int64, limit int) ([]deadletter.Entry, error) {
	rows, err := r.q(ctx).Query(ctx, selectUnprocessedDeadLettersAfterQuery, afterID, limit)
	if err != nil {
		r.logger.Error("Failed to get unprocessed dead letter entries", "error", err)
		return nil, fmt.Errorf("failed to get unprocessed dead letter entries: %w", err)
	}
	defer rows.Close()

	var entries []deadletter.Entry
	for rows.Next() {
		entry, err := scanDeadLetter(rows)
		if err != nil {
			r.logger.Error("Failed to scan dead letter entry", "error", err)
			return nil, fmt.Errorf("failed to scan dead letter entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over dead letter entries", "error", err)
		return nil, fmt.Errorf("error iterating over dead letter entries: %w", err)
	}

	return entries, nil
}

// MarkProcessed flags an entry as recovered.
// Returns ErrEntryNotFound if the entry doesn't exist.
func (r *DeadLetterRepository) MarkProcessed(ctx context.Context, id int64) error {
	result, err := r.q(ctx).Exec(ctx, markDeadLetterProcessedQuery, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark dead letter entry processed", "id", id, "error", err)
		return fmt.Errorf("failed to mark dead letter entry processed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return deadletter.ErrEntryNotFound{ID: id}
	}

	return nil
}

func (r *DeadLetterRepository) CountUnprocessed(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q(ctx).QueryRow(ctx, countUnprocessedDeadLettersQuery).Scan(&count); err != nil {
		r.logger.Error("Failed to count unprocessed dead letter entries", "error", err)
		return 0, fmt.Errorf("failed to count unprocessed dead letter entries: %w", err)
	}
	return count, nil
}

func scanDeadLetter(row pgx.Row) (deadletter.Entry, error) {
	var (
		entry   deadletter.Entry
		payload []byte
	)
	err := row.Scan(
		&entry.ID,
		&entry.IdempotencyKey,
		&entry.EventType,
		&payload,
		&entry.FailureReason,
		&entry.RetryCount,
		&entry.Processed,
		&entry.ProcessedAt,
		&entry.CreatedAt,
		&entry.LastRetryAt,
	)
	entry.Payload = payload
	return entry, err
}
