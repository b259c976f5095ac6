package deadletter

import "context"

// Repository stores dead-letter entries for later recovery.
type Repository interface {
	Create(ctx context.Context, entry Entry) (Entry, error)

	// GetByIdempotencyKeyAndType returns the newest entry of eventType for key, or nil, nil.
	GetByIdempotencyKeyAndType(ctx context.Context, key string, eventType EventType) (*Entry, error)

	// GetUnprocessedAfter returns up to limit unprocessed entries with an id above afterID, in id order.
	GetUnprocessedAfter(ctx context.Context, afterID int64, limit int) ([]Entry, error)

	MarkProcessed(ctx context.Context, id int64) error
	CountUnprocessed(ctx context.Context) (int64, error)
}

// ErrEntryNotFound indicates a missing dead-letter entry
type ErrEntryNotFound struct {
	ID int64
}

func (e ErrEntryNotFound) Error() string {
	return "dead letter entry not found"
}

// Is matches any ErrEntryNotFound when the target ID is zero.
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.ID == 0 {
		return true
	}
	return e.ID == t.ID
}
