package handler

import (
	"time"

	"github.com/labs-ledger-transfer-engine/internal/domain/account"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/shopspring/decimal"
)

// IdempotencyKeyHeader carries the client-chosen key of a transfer submission.
const IdempotencyKeyHeader = "Idempotency-Key"

// CreateTransferRequest represents a request to move money between two accounts.
// Amounts are accepted as JSON strings or numbers.
type CreateTransferRequest struct {
	FromAccountID int64            `json:"from_account_id" binding:"required"`
	ToAccountID   int64            `json:"to_account_id" binding:"required"`
	Amount        *decimal.Decimal `json:"amount" binding:"required"`
	Description   string           `json:"description" binding:"max=500"`
}

// TransferResponse represents a transfer in API responses
type TransferResponse struct {
	ID             int64  `json:"id,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	FromAccountID  int64  `json:"from_account_id"`
	ToAccountID    int64  `json:"to_account_id"`
	Amount         string `json:"amount"`
	Status         string `json:"status"`
	FailureReason  string `json:"failure_reason,omitempty"`
	Description    string `json:"description,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// DepositRequest represents a request to credit an account
type DepositRequest struct {
	Amount      *decimal.Decimal `json:"amount" binding:"required"`
	Description string           `json:"description" binding:"max=500"`
}

// UpdateAccountStatusRequest represents an administrative status change
type UpdateAccountStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID        int64  `json:"id"`
	OwnerName string `json:"owner_name"`
	Balance   string `json:"balance"`
	Status    string `json:"status"`
	Version   int64  `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func mapTransferToResponse(t transfer.Transfer) TransferResponse {
	return TransferResponse{
		ID:             t.ID,
		IdempotencyKey: t.IdempotencyKey,
		FromAccountID:  t.FromAccountID,
		ToAccountID:    t.ToAccountID,
		Amount:         t.Amount.String(),
		Status:         string(t.Status),
		FailureReason:  t.FailureReason,
		Description:    t.Description,
		CreatedAt:      t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      t.UpdatedAt.Format(time.RFC3339),
	}
}

func mapAccountToResponse(acc account.Account) AccountResponse {
	return AccountResponse{
		ID:        acc.ID,
		OwnerName: acc.OwnerName,
		Balance:   acc.Balance.String(),
		Status:    string(acc.Status),
		Version:   acc.Version,
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: acc.UpdatedAt.Format(time.RFC3339),
	}
}
