// Package transfer models a single money movement between two accounts and its
// one-way lifecycle PENDING -> COMPLETED | FAILED.
package transfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MaxIdempotencyKeyLength bounds client-supplied keys.
const MaxIdempotencyKeyLength = 255

// Status is the lifecycle state of a transfer.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Command is a client request to move Amount from FromAccountID to ToAccountID.
type Command struct {
	IdempotencyKey string
	FromAccountID  int64
	ToAccountID    int64
	Amount         decimal.Decimal
	Description    string
}

// Transfer is an immutable snapshot of a transfer row. A zero ID means not yet persisted.
type Transfer struct {
	ID             int64           `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	FromAccountID  int64           `json:"from_account_id"`
	ToAccountID    int64           `json:"to_account_id"`
	Amount         decimal.Decimal `json:"amount"`
	Status         Status          `json:"status"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// New validates cmd and returns a PENDING transfer.
func New(cmd Command) (Transfer, error) {
	key := strings.TrimSpace(cmd.IdempotencyKey)
	switch {
	case key == "":
		return Transfer{}, invalidRequest("Idempotency key must not be blank")
	case len(cmd.IdempotencyKey) > MaxIdempotencyKeyLength:
		return Transfer{}, invalidRequest("Idempotency key must not exceed 255 characters")
	case cmd.FromAccountID == cmd.ToAccountID:
		return Transfer{}, invalidRequest("Cannot transfer to the same account")
	case !cmd.Amount.IsPositive():
		return Transfer{}, invalidRequest("Amount must be positive: " + cmd.Amount.String())
	case !shared.FitsAmountScale(cmd.Amount):
		return Transfer{}, invalidRequest(fmt.Sprintf("Amount must have at most %d decimal places: %s", shared.AmountScale, cmd.Amount.String()))
	}

	now := time.Now()
	return Transfer{
		IdempotencyKey: cmd.IdempotencyKey,
		FromAccountID:  cmd.FromAccountID,
		ToAccountID:    cmd.ToAccountID,
		Amount:         cmd.Amount,
		Status:         StatusPending,
		Description:    cmd.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Complete transitions a PENDING transfer to COMPLETED.
func (t Transfer) Complete() (Transfer, error) {
	if t.Status != StatusPending {
		return Transfer{}, shared.NewBusinessError(shared.ErrorKindInvalidTransferStatusTransition,
			"Cannot complete transfer. Current status: %s", t.Status)
	}
	t.Status = StatusCompleted
	t.UpdatedAt = time.Now()
	return t, nil
}

// Fail transitions a PENDING transfer to FAILED, recording reason.
func (t Transfer) Fail(reason string) (Transfer, error) {
	if t.Status != StatusPending {
		return Transfer{}, shared.NewBusinessError(shared.ErrorKindInvalidTransferStatusTransition,
			"Cannot fail transfer. Current status: %s", t.Status)
	}
	if strings.TrimSpace(reason) == "" {
		return Transfer{}, invalidRequest("Failure reason must not be blank")
	}
	t.Status = StatusFailed
	t.FailureReason = reason
	t.UpdatedAt = time.Now()
	return t, nil
}

// IsTerminal reports whether the transfer has reached COMPLETED or FAILED.
func (t Transfer) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// SortedAccountIDs returns both account ids in ascending order, the global lock order.
func (t Transfer) SortedAccountIDs() []int64 {
	if t.FromAccountID < t.ToAccountID {
		return []int64{t.FromAccountID, t.ToAccountID}
	}
	return []int64{t.ToAccountID, t.FromAccountID}
}

func invalidRequest(msg string) error {
	return &shared.BusinessError{Kind: shared.ErrorKindInvalidRequest, Message: msg}
}
