// Package producers publishes operator alerts to Kafka.
package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/config"
	"github.com/labs-ledger-transfer-engine/internal/domain/deadletter"
	"github.com/segmentio/kafka-go"
)

const alertWriteTimeout = 10 * time.Second

// FailureAlertProducer publishes dead-lettered and stuck-open failures to the alert topic.
// A nil *FailureAlertProducer is valid and drops every alert.
type FailureAlertProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewFailureAlertProducer returns nil, nil when no alert topic is configured.
func NewFailureAlertProducer(logger *slog.Logger, cfg *config.KafkaConfig) (*FailureAlertProducer, error) {
	logger = logger.With("component", "failure_alert_producer")
	if cfg.FailureAlertTopic == "" {
		logger.Info("Failure alert topic is not configured, alerts are disabled")
		return nil, nil
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for failure alerts: %w", err)
	}
	defer conn.Close()

	if err := ensureTopic(conn, cfg.FailureAlertTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure failure alert topic %s exists: %w", cfg.FailureAlertTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.FailureAlertTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: alertWriteTimeout,
	}

	return newFailureAlertProducer(logger, writer, cfg.FailureAlertTopic), nil
}

func newFailureAlertProducer(logger *slog.Logger, writer KafkaWriter, topic string) *FailureAlertProducer {
	return &FailureAlertProducer{
		logger: logger,
		writer: writer,
		topic:  topic,
	}
}

// NotifyFailure publishes alert keyed by its idempotency key, so every alert for one
// transfer lands on the same partition.
func (p *FailureAlertProducer) NotifyFailure(ctx context.Context, alert deadletter.Alert) error {
	if p == nil || p.writer == nil {
		return nil
	}

	value, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal failure alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(alert.IdempotencyKey),
		Value: value,
		Headers: []kafka.Header{
			{Key: "alert-stage", Value: []byte(alert.Stage)},
			{Key: "event-type", Value: []byte(alert.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish failure alert",
			"topic", p.topic,
			"idempotency_key", alert.IdempotencyKey,
			"stage", alert.Stage,
			"error", err,
		)
		return fmt.Errorf("failed to publish failure alert to %s: %w", p.topic, err)
	}

	p.logger.Info("Published failure alert",
		"topic", p.topic,
		"idempotency_key", alert.IdempotencyKey,
		"stage", alert.Stage,
	)
	return nil
}

func (p *FailureAlertProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing failure alert producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close failure alert writer for topic %s: %w", p.topic, err)
	}
	return nil
}
