package account

import (
	"context"
	"strconv"

	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
)

// Repository defines account persistence operations.
// Calls made with a context carrying a transaction run inside that transaction.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Account, error)

	// GetByIDForUpdate loads one account and holds its row lock until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (Account, error)

	// GetByIDsForUpdate locks all requested rows in ascending id order with a single statement.
	// Missing ids are simply absent from the result.
	GetByIDsForUpdate(ctx context.Context, ids []int64) ([]Account, error)

	// Update persists acc if the stored version is acc.Version-1.
	Update(ctx context.Context, acc Account) (Account, error)
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	AccountID int64
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for account: " + strconv.FormatInt(e.AccountID, 10)
}

func (e ErrConcurrentModification) Unwrap() error {
	return shared.ErrOptimisticLock
}

// NotFound builds the business error for a missing account.
func NotFound(id int64) error {
	return shared.NewBusinessError(shared.ErrorKindAccountNotFound, "Account not found: %d", id)
}
