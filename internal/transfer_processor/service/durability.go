package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/domain/audit"
	"github.com/labs-ledger-transfer-engine/internal/domain/deadletter"
	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/labs-ledger-transfer-engine/internal/metrics"
	"github.com/labs-ledger-transfer-engine/internal/platform/retry"
)

// FailureDurability makes the side records of a transfer attempt durable off the request path:
// the FAILED transfer row and its audit event, and the success audit event.
// Writes that exhaust their retries fall back to the dead-letter store.
type FailureDurability struct {
	txExecutor  TransactionExecutor
	transfers   transfer.Repository
	audits      audit.Repository
	deadLetters deadletter.Repository
	registry    FailureRegistry
	retry       retry.Policy
	runner      TaskRunner
	notifier    FailureNotifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewFailureDurability(
	txExecutor TransactionExecutor,
	transfers transfer.Repository,
	audits audit.Repository,
	deadLetters deadletter.Repository,
	registry FailureRegistry,
	retryPolicy retry.Policy,
	runner TaskRunner,
	notifier FailureNotifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *FailureDurability {
	return &FailureDurability{
		txExecutor:  txExecutor,
		transfers:   transfers,
		audits:      audits,
		deadLetters: deadLetters,
		registry:    registry,
		retry:       retryPolicy,
		runner:      runner,
		notifier:    notifier,
		metrics:     m,
		logger:      logger.With("component", "failure_durability"),
	}
}

// PersistFailure schedules the durable write of a registered failure and returns immediately.
func (d *FailureDurability) PersistFailure(ctx context.Context, record transfer.FailureRecord, cause error) {
	bgCtx := context.WithoutCancel(ctx)
	d.submit(record.Transfer.IdempotencyKey, func() {
		d.persistFailure(bgCtx, record, cause)
	})
}

// RecordCompleted schedules the TRANSFER_COMPLETED audit event and returns immediately.
func (d *FailureDurability) RecordCompleted(ctx context.Context, completed transfer.Transfer) {
	bgCtx := context.WithoutCancel(ctx)
	d.submit(completed.IdempotencyKey, func() {
		d.writeAudit(bgCtx, completed, audit.NewCompletedEvent(completed))
	})
}

// RecordSystemFailure schedules a TRANSFER_FAILED_SYSTEM audit event for an attempt that
// was aborted by a conflict, timeout or infrastructure error.
func (d *FailureDurability) RecordSystemFailure(ctx context.Context, attempted transfer.Transfer, reasonCode string, cause error) {
	bgCtx := context.WithoutCancel(ctx)
	event := audit.NewFailedSystemEvent(attempted, reasonCode, cause.Error())
	d.submit(attempted.IdempotencyKey, func() {
		d.writeAudit(bgCtx, attempted, event)
	})
}

func (d *FailureDurability) submit(key string, task func()) {
	guarded := func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Durability task panicked", "idempotency_key", key, "panic", r)
			}
		}()
		task()
	}
	if err := d.runner.Submit(guarded); err != nil {
		d.logger.Warn("Failed to submit durability task, running on dedicated goroutine", "idempotency_key", key, "error", err)
		go guarded()
	}
}

func (d *FailureDurability) persistFailure(ctx context.Context, record transfer.FailureRecord, cause error) {
	key := record.Transfer.IdempotencyKey
	logger := d.logger.With("idempotency_key", key)

	var (
		saved   transfer.Transfer
		written bool
	)
	result := d.retry.Execute(ctx, func(ctx context.Context) error {
		return d.txExecutor.Execute(ctx, func(ctx context.Context) error {
			var err error
			saved, written, err = d.upsertFailed(ctx, record)
			if err != nil || !written {
				return err
			}
			_, err = d.audits.Create(ctx, audit.NewFailedBusinessEvent(saved, shared.KindOf(cause), record.ErrorMessage))
			return err
		})
	})

	if result.Succeeded() {
		d.registry.Remove(key)
		switch {
		case written:
			d.metrics.IncDurability(metrics.DurabilityPersisted)
			logger.Info("Persisted failed transfer", "transfer_id", saved.ID, "attempts", result.Attempts)
		case saved.Status == transfer.StatusCompleted:
			logger.Warn("Transfer completed by a concurrent attempt, discarding failure record",
				"transfer_id", saved.ID,
				"failure_reason", record.ErrorMessage,
			)
		default:
			logger.Info("Failed transfer already persisted", "transfer_id", saved.ID)
		}
		return
	}

	// the record stays registered: a dead-letter row does not answer idempotent retries
	logger.Warn("Failed to persist failure record, falling back to dead letter queue",
		"attempts", result.Attempts,
		"error", result.LastErr,
	)
	d.deadLetter(ctx, deadletter.EventTypeFailurePersistenceFailed, deadletter.NewPayload(record.Transfer, cause), result)
}

// upsertFailed inserts the FAILED row or fails a leftover PENDING row, reporting written = true.
// A terminal row is returned untouched with written = false.
func (d *FailureDurability) upsertFailed(ctx context.Context, record transfer.FailureRecord) (transfer.Transfer, bool, error) {
	existing, err := d.transfers.GetByIdempotencyKey(ctx, record.Transfer.IdempotencyKey)
	if err != nil {
		return transfer.Transfer{}, false, err
	}

	switch {
	case existing == nil:
		saved, err := d.transfers.Create(ctx, record.Transfer)
		if shared.IsBusinessError(err) {
			// lost an insert race with a concurrent attempt; the next try sees its row
			return transfer.Transfer{}, false, fmt.Errorf("concurrent insert for idempotency key %s: %v", record.Transfer.IdempotencyKey, err)
		}
		return saved, err == nil, err
	case existing.Status == transfer.StatusPending:
		failed, err := existing.Fail(record.ErrorMessage)
		if err != nil {
			return transfer.Transfer{}, false, err
		}
		saved, err := d.transfers.Update(ctx, failed)
		return saved, err == nil, err
	default:
		return *existing, false, nil
	}
}

func (d *FailureDurability) writeAudit(ctx context.Context, t transfer.Transfer, event audit.Event) {
	logger := d.logger.With("idempotency_key", t.IdempotencyKey, "event_type", event.EventType)

	result := d.retry.Execute(ctx, func(ctx context.Context) error {
		return d.txExecutor.Execute(ctx, func(ctx context.Context) error {
			_, err := d.audits.Create(ctx, event)
			return err
		})
	})

	if result.Succeeded() {
		d.metrics.IncAuditWrite("persisted")
		logger.Debug("Audit event persisted", "transfer_id", t.ID)
		return
	}

	d.metrics.IncAuditWrite("failed")
	logger.Warn("Failed to persist audit event, falling back to dead letter queue", "attempts", result.Attempts, "error", result.LastErr)
	d.deadLetter(ctx, deadletter.EventTypeAuditEventFailed, deadletter.NewAuditPayload(t, event, result.LastErr), result)
}

func (d *FailureDurability) deadLetter(ctx context.Context, eventType deadletter.EventType, payload deadletter.Payload, result retry.Result) {
	key := payload.IdempotencyKey
	logger := d.logger.With("idempotency_key", key, "event_type", eventType)

	entry, err := d.saveDeadLetter(ctx, eventType, payload, result)
	if err != nil {
		d.metrics.IncDurability(metrics.DurabilityStuckOpen)
		logger.Error("Failed to save dead letter entry, failure is stuck open",
			"error", err,
			"durability_error", result.LastErr,
			"registry_size", d.registry.Size(),
		)
		d.notify(ctx, deadletter.Alert{
			Stage:          deadletter.AlertStageStuckOpen,
			IdempotencyKey: key,
			EventType:      eventType,
			Reason:         err.Error(),
			Payload:        payload,
			OccurredAt:     time.Now(),
		})
		return
	}

	d.metrics.IncDurability(metrics.DurabilityDeadLettered)
	logger.Warn("Saved dead letter entry", "dead_letter_id", entry.ID)
}

// saveDeadLetter keeps one FAILURE_PERSISTENCE_FAILED entry per key.
// Audit fallbacks are never deduplicated.
func (d *FailureDurability) saveDeadLetter(ctx context.Context, eventType deadletter.EventType, payload deadletter.Payload, result retry.Result) (deadletter.Entry, error) {
	if eventType == deadletter.EventTypeFailurePersistenceFailed {
		existing, err := d.deadLetters.GetByIdempotencyKeyAndType(ctx, payload.IdempotencyKey, eventType)
		if err != nil {
			return deadletter.Entry{}, err
		}
		if existing != nil {
			d.logger.Info("Dead letter entry already exists", "idempotency_key", payload.IdempotencyKey, "dead_letter_id", existing.ID)
			return *existing, nil
		}
	}

	entry, err := deadletter.NewEntry(eventType, payload, result.LastErr, result.Attempts)
	if err != nil {
		return deadletter.Entry{}, err
	}
	return d.deadLetters.Create(ctx, entry)
}

func (d *FailureDurability) notify(ctx context.Context, alert deadletter.Alert) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.NotifyFailure(ctx, alert); err != nil {
		d.logger.Error("Failed to publish failure alert", "idempotency_key", alert.IdempotencyKey, "error", err)
	}
}
