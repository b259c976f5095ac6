package transfer

import "time"

// FailureRecord is the in-memory stand-in for a FAILED transfer whose row may not be durable yet.
type FailureRecord struct {
	Transfer     Transfer
	ErrorMessage string
	RegisteredAt time.Time
}

// NewFailureRecord wraps a FAILED transfer.
func NewFailureRecord(failed Transfer, errorMessage string) FailureRecord {
	return FailureRecord{
		Transfer:     failed,
		ErrorMessage: errorMessage,
		RegisteredAt: time.Now(),
	}
}
