package ledger

import (
	"time"

	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// Entry is an append-only movement on one account.
type Entry struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Type        EntryType       `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID string          `json:"reference_id,omitempty"` // idempotency key of the owning transfer
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewEntry builds an entry; amount must be positive.
func NewEntry(accountID int64, entryType EntryType, amount decimal.Decimal, referenceID, description string) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, shared.NewBusinessError(shared.ErrorKindInvalidAmount, "Amount must be positive: %s", amount.String())
	}
	return Entry{
		AccountID:   accountID,
		Type:        entryType,
		Amount:      amount,
		ReferenceID: referenceID,
		Description: description,
		CreatedAt:   time.Now(),
	}, nil
}
