package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/labs-ledger-transfer-engine/internal/domain/deadletter"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deadLetterColumnNames = []string{"id", "idempotency_key", "event_type", "payload", "failure_reason", "retry_count", "processed", "processed_at", "created_at", "last_retry_at"}

func testDeadLetter(t *testing.T) deadletter.Entry {
	t.Helper()
	failed := testTransfer()
	failed.Status = transfer.StatusFailed
	entry, err := deadletter.NewEntry(deadletter.EventTypeFailurePersistenceFailed, deadletter.NewPayload(failed, nil), errors.New("connection refused"), 3)
	require.NoError(t, err)
	return entry
}

func deadLetterRow(rows *pgxmock.Rows, e deadletter.Entry) *pgxmock.Rows {
	return rows.AddRow(e.ID, e.IdempotencyKey, e.EventType, []byte(e.Payload), e.FailureReason, e.RetryCount, e.Processed, e.ProcessedAt, e.CreatedAt, e.LastRetryAt)
}

func TestDeadLetterRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &DeadLetterRepository{querier: mock, logger: newTestLogger()}
	entry := testDeadLetter(t)
	query := regexp.QuoteMeta(insertDeadLetterQuery)
	args := []interface{}{entry.IdempotencyKey, entry.EventType, []byte(entry.Payload), entry.FailureReason, entry.RetryCount, false, entry.CreatedAt, entry.LastRetryAt}

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(args...).WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(21)))

		created, err := repo.Create(ctx, entry)
		assert.NoError(t, err)
		assert.Equal(t, int64(21), created.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("read-only transaction")
		mock.ExpectQuery(query).WithArgs(args...).WillReturnError(dbErr)

		_, err := repo.Create(ctx, entry)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeadLetterRepository_GetByIdempotencyKeyAndType(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &DeadLetterRepository{querier: mock, logger: newTestLogger()}
	entry := testDeadLetter(t)
	entry.ID = 21
	query := regexp.QuoteMeta(selectDeadLetterByKeyAndTypeQuery)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("k1", deadletter.EventTypeFailurePersistenceFailed).
			WillReturnRows(deadLetterRow(pgxmock.NewRows(deadLetterColumnNames), entry))

		got, err := repo.GetByIdempotencyKeyAndType(ctx, "k1", deadletter.EventTypeFailurePersistenceFailed)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, entry.ID, got.ID)
		assert.Equal(t, deadletter.EventTypeFailurePersistenceFailed, got.EventType)

		payload, err := got.DecodePayload()
		require.NoError(t, err)
		assert.Equal(t, "k1", payload.IdempotencyKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("k1", deadletter.EventTypeAuditEventFailed).WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByIdempotencyKeyAndType(ctx, "k1", deadletter.EventTypeAuditEventFailed)
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeadLetterRepository_GetUnprocessedAfter(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &DeadLetterRepository{querier: mock, logger: newTestLogger()}
	older, newer := testDeadLetter(t), testDeadLetter(t)
	older.ID, newer.ID = 8, 9
	query := regexp.QuoteMeta(selectUnprocessedDeadLettersAfterQuery)

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows(deadLetterColumnNames)
		deadLetterRow(rows, older)
		deadLetterRow(rows, newer)
		mock.ExpectQuery(query).WithArgs(int64(7), 10).WillReturnRows(rows)

		entries, err := repo.GetUnprocessedAfter(ctx, 7, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(8), entries[0].ID)
		assert.Equal(t, int64(9), entries[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("timeout")
		mock.ExpectQuery(query).WithArgs(int64(0), 10).WillReturnError(dbErr)

		_, err := repo.GetUnprocessedAfter(ctx, 0, 10)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to get unprocessed dead letter entries")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeadLetterRepository_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &DeadLetterRepository{querier: mock, logger: newTestLogger()}
	query := regexp.QuoteMeta(markDeadLetterProcessedQuery)

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(pgxmock.AnyArg(), int64(5)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.MarkProcessed(ctx, 5))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(pgxmock.AnyArg(), int64(5)).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkProcessed(ctx, 5)
		assert.ErrorIs(t, err, deadletter.ErrEntryNotFound{ID: 5})
		assert.ErrorIs(t, err, deadletter.ErrEntryNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeadLetterRepository_CountUnprocessed(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &DeadLetterRepository{querier: mock, logger: newTestLogger()}
	query := regexp.QuoteMeta(countUnprocessedDeadLettersQuery)

	mock.ExpectQuery(query).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))
	count, err := repo.CountUnprocessed(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), count)

	mock.ExpectQuery(query).WillReturnError(errors.New("conn busy"))
	_, err = repo.CountUnprocessed(ctx)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
