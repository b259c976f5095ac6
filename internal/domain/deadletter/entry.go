// Package deadletter holds the last-resort record of background writes that could not be made durable.
package deadletter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/domain/audit"
	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
)

// EventType names the background write that was dead-lettered.
type EventType string

const (
	EventTypeFailurePersistenceFailed EventType = "FAILURE_PERSISTENCE_FAILED"
	EventTypeAuditEventFailed         EventType = "AUDIT_EVENT_FAILED"
)

// Entry is one dead-letter row awaiting manual or batch recovery.
type Entry struct {
	ID             int64           `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	EventType      EventType       `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	FailureReason  string          `json:"failure_reason"`
	RetryCount     int             `json:"retry_count"`
	Processed      bool            `json:"processed"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	LastRetryAt    *time.Time      `json:"last_retry_at,omitempty"`
}

// Payload is everything a recovery job needs to replay the lost write.
type Payload struct {
	TransferID     int64           `json:"transfer_id,omitempty"`
	FromAccountID  int64           `json:"from_account_id"`
	ToAccountID    int64           `json:"to_account_id"`
	Amount         string          `json:"amount"`
	Description    string          `json:"description,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	TransferStatus transfer.Status `json:"transfer_status"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	ErrorKind      string          `json:"error_kind,omitempty"`

	// set only for AUDIT_EVENT_FAILED entries
	AuditEventType audit.EventType `json:"audit_event_type,omitempty"`
	ReasonCode     string          `json:"reason_code,omitempty"`
	ReasonMessage  string          `json:"reason_message,omitempty"`
}

// NewPayload captures t and the error that caused the original failure, if any.
func NewPayload(t transfer.Transfer, cause error) Payload {
	p := Payload{
		TransferID:     t.ID,
		FromAccountID:  t.FromAccountID,
		ToAccountID:    t.ToAccountID,
		Amount:         t.Amount.String(),
		Description:    t.Description,
		IdempotencyKey: t.IdempotencyKey,
		TransferStatus: t.Status,
	}
	if cause != nil {
		p.ErrorMessage = cause.Error()
		p.ErrorKind = string(shared.KindOf(cause))
	}
	return p
}

// NewAuditPayload captures an audit event that could not be written, and the write error.
func NewAuditPayload(t transfer.Transfer, event audit.Event, writeErr error) Payload {
	p := NewPayload(t, nil)
	p.AuditEventType = event.EventType
	p.ReasonCode = event.ReasonCode
	p.ReasonMessage = event.ReasonMessage
	if writeErr != nil {
		p.ErrorMessage = writeErr.Error()
	}
	return p
}

// NewEntry builds an unprocessed entry. lastErr is the final error of the exhausted write.
func NewEntry(eventType EventType, payload Payload, lastErr error, attempts int) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal dead letter payload: %w", err)
	}

	reason := "unknown"
	if lastErr != nil {
		reason = lastErr.Error()
	}

	now := time.Now()
	return Entry{
		IdempotencyKey: payload.IdempotencyKey,
		EventType:      eventType,
		Payload:        raw,
		FailureReason:  reason,
		RetryCount:     attempts,
		CreatedAt:      now,
		LastRetryAt:    &now,
	}, nil
}

// DecodePayload unmarshals the stored payload.
func (e Entry) DecodePayload() (Payload, error) {
	var p Payload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// MarkProcessed returns a copy flagged as recovered at the given time.
func (e Entry) MarkProcessed(at time.Time) Entry {
	e.Processed = true
	e.ProcessedAt = &at
	return e
}
