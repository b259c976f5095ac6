package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labs-ledger-transfer-engine/internal/domain/audit"
	"github.com/labs-ledger-transfer-engine/internal/platform/persistence"
)

const insertAuditEventQuery = `
		INSERT INTO audit_events (transfer_id, idempotency_key, event_type, transfer_status, reason_code, reason_message, metadata, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)
		RETURNING id`

// AuditRepository appends audit events in PostgreSQL.
type AuditRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewAuditRepository(logger *slog.Logger, db *persistence.PostgresDB) *AuditRepository {
	return &AuditRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

var _ audit.Repository = (*AuditRepository)(nil)

func (r *AuditRepository) Create(ctx context.Context, event audit.Event) (audit.Event, error) {
	q := persistence.QuerierFromContext(ctx, r.querier)
	err := q.QueryRow(ctx, insertAuditEventQuery,
		event.TransferID,
		event.IdempotencyKey,
		event.EventType,
		event.TransferStatus,
		event.ReasonCode,
		event.ReasonMessage,
		[]byte(event.Metadata),
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		r.logger.Error("Failed to create audit event",
			"idempotency_key", event.IdempotencyKey,
			"event_type", event.EventType,
			"error", err,
		)
		return audit.Event{}, fmt.Errorf("failed to create audit event: %w", err)
	}

	return event, nil
}
