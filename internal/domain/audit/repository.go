package audit

import "context"

// Repository appends audit events.
type Repository interface {
	Create(ctx context.Context, event Event) (Event, error)
}
