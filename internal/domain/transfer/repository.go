package transfer

import "context"

// Repository defines transfer persistence operations.
type Repository interface {
	// GetByIdempotencyKey returns nil, nil when no transfer exists for key.
	GetByIdempotencyKey(ctx context.Context, key string) (*Transfer, error)

	// Create inserts t and returns it with its generated ID.
	// A second row for the same idempotency key fails with a DuplicateTransfer business error.
	Create(ctx context.Context, t Transfer) (Transfer, error)

	// Update persists status, failure reason and updated_at.
	Update(ctx context.Context, t Transfer) (Transfer, error)
}
