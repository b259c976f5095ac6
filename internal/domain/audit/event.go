// Package audit records the lifecycle of transfers in storage that outlives the transfer's own transaction.
package audit

import (
	"encoding/json"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
)

// EventType classifies an audit event.
type EventType string

const (
	EventTypeTransferCompleted      EventType = "TRANSFER_COMPLETED"
	EventTypeTransferFailedBusiness EventType = "TRANSFER_FAILED_BUSINESS"
	EventTypeTransferFailedSystem   EventType = "TRANSFER_FAILED_SYSTEM"
)

// Event is an append-only audit row. TransferID is nil when the transfer row never became durable.
type Event struct {
	ID             int64           `json:"id"`
	TransferID     *int64          `json:"transfer_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	EventType      EventType       `json:"event_type"`
	TransferStatus transfer.Status `json:"transfer_status,omitempty"`
	ReasonCode     string          `json:"reason_code,omitempty"`
	ReasonMessage  string          `json:"reason_message,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type transferMetadata struct {
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
}

// NewCompletedEvent describes a committed transfer.
func NewCompletedEvent(t transfer.Transfer) Event {
	return newEvent(t, EventTypeTransferCompleted, "", "")
}

// NewFailedBusinessEvent describes a transfer rejected by a business rule.
func NewFailedBusinessEvent(t transfer.Transfer, kind shared.ErrorKind, message string) Event {
	return newEvent(t, EventTypeTransferFailedBusiness, string(kind), message)
}

// NewFailedSystemEvent describes a transfer aborted by an infrastructure failure.
func NewFailedSystemEvent(t transfer.Transfer, reasonCode, message string) Event {
	return newEvent(t, EventTypeTransferFailedSystem, reasonCode, message)
}

func newEvent(t transfer.Transfer, eventType EventType, reasonCode, message string) Event {
	var transferID *int64
	if t.ID != 0 {
		id := t.ID
		transferID = &id
	}
	// marshalling a struct of scalars cannot fail
	metadata, _ := json.Marshal(transferMetadata{
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount.String(),
	})
	return Event{
		TransferID:     transferID,
		IdempotencyKey: t.IdempotencyKey,
		EventType:      eventType,
		TransferStatus: t.Status,
		ReasonCode:     reasonCode,
		ReasonMessage:  message,
		Metadata:       metadata,
		CreatedAt:      time.Now(),
	}
}
