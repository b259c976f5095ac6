// Package dead_letter_monitor watches the dead-letter backlog and announces new entries.
// It never marks entries processed; recovery happens out of band.
package dead_letter_monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/config"
	"github.com/labs-ledger-transfer-engine/internal/domain/deadletter"
	"github.com/labs-ledger-transfer-engine/internal/metrics"
)

// AlertPublisher delivers operator alerts.
type AlertPublisher interface {
	NotifyFailure(ctx context.Context, alert deadletter.Alert) error
}

// Monitor polls unprocessed dead-letter entries
type Monitor struct {
	repo         deadletter.Repository
	publisher    AlertPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int

	// highWater is the largest entry id already announced by this process; pages start after it
	highWater int64
}

// NewMonitor builds a monitor. publisher may be nil, in which case only the backlog gauge is kept.
func NewMonitor(
	cfg *config.DeadLetterMonitorConfig,
	repo deadletter.Repository,
	publisher AlertPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		repo:         repo,
		publisher:    publisher,
		metrics:      m,
		logger:       logger.With("component", "dead_letter_monitor"),
		pollInterval: cfg.PollingInterval,
		batchSize:    cfg.BatchSize,
	}
}

// Start polls until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("Starting dead letter monitor",
		"poll_interval", m.pollInterval.String(),
		"batch_size", m.batchSize,
		"alerts_enabled", m.publisher != nil,
	)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Dead letter monitor stopping due to context cancellation")
			return
		case <-ticker.C:
			if err := m.scan(ctx); err != nil {
				m.logger.Error("Error during dead letter scan", "error", err)
			}
		}
	}
}

func (m *Monitor) scan(ctx context.Context) error {
	count, err := m.repo.CountUnprocessed(ctx)
	if err != nil {
		return fmt.Errorf("failed to count unprocessed dead letter entries: %w", err)
	}
	m.metrics.SetDeadLetterBacklog(count)

	if count == 0 || m.publisher == nil {
		return nil
	}
	m.logger.Warn("Unprocessed dead letter entries pending recovery", "count", count)

	for {
		entries, err := m.repo.GetUnprocessedAfter(ctx, m.highWater, m.batchSize)
		if err != nil {
			return fmt.Errorf("failed to get unprocessed dead letter entries: %w", err)
		}
		for _, entry := range entries {
			if err := m.announce(ctx, entry); err != nil {
				// retried on the next tick
				return err
			}
			m.highWater = entry.ID
		}
		if len(entries) == 0 || len(entries) < m.batchSize {
			return nil
		}
	}
}

func (m *Monitor) announce(ctx context.Context, entry deadletter.Entry) error {
	logger := m.logger.With("dead_letter_id", entry.ID, "idempotency_key", entry.IdempotencyKey)

	payload, err := entry.DecodePayload()
	if err != nil {
		logger.Warn("Failed to decode dead letter payload", "error", err)
	}

	alert := deadletter.Alert{
		Stage:          deadletter.AlertStageDeadLettered,
		IdempotencyKey: entry.IdempotencyKey,
		EventType:      entry.EventType,
		DeadLetterID:   entry.ID,
		Reason:         entry.FailureReason,
		Payload:        payload,
		OccurredAt:     entry.CreatedAt,
	}
	if err := m.publisher.NotifyFailure(ctx, alert); err != nil {
		return fmt.Errorf("failed to publish alert for dead letter entry %d: %w", entry.ID, err)
	}
	logger.Info("Announced dead letter entry", "event_type", entry.EventType)
	return nil
}
