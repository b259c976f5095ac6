package ledger

import "context"

// Repository appends ledger entries. Entries are never updated or deleted.
type Repository interface {
	Create(ctx context.Context, entry Entry) (Entry, error)
}
