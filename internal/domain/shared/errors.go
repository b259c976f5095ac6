// Package shared holds the error taxonomy used across the ledger domain.
package shared

import (
	"errors"
	"fmt"
)

// ErrorKind identifies one business-error variant.
type ErrorKind string

const (
	ErrorKindAccountNotFound                 ErrorKind = "ACCOUNT_NOT_FOUND"
	ErrorKindInsufficientBalance             ErrorKind = "INSUFFICIENT_BALANCE"
	ErrorKindInvalidAccountStatus            ErrorKind = "INVALID_ACCOUNT_STATUS"
	ErrorKindInvalidAmount                   ErrorKind = "INVALID_AMOUNT"
	ErrorKindDuplicateTransfer               ErrorKind = "DUPLICATE_TRANSFER"
	ErrorKindInvalidTransferStatusTransition ErrorKind = "INVALID_TRANSFER_STATUS_TRANSITION"
	ErrorKindInvalidRequest                  ErrorKind = "INVALID_REQUEST"
)

// BusinessError is a rule violation that is never retried and always surfaces to the caller.
// Two business errors match under errors.Is when their kinds are equal.
type BusinessError struct {
	Kind    ErrorKind
	Message string
}

func (e *BusinessError) Error() string {
	return e.Message
}

// Is matches any BusinessError of the same kind.
func (e *BusinessError) Is(target error) bool {
	t, ok := target.(*BusinessError)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is dispatch.
var (
	ErrAccountNotFound                 = &BusinessError{Kind: ErrorKindAccountNotFound, Message: "account not found"}
	ErrInsufficientBalance             = &BusinessError{Kind: ErrorKindInsufficientBalance, Message: "insufficient balance"}
	ErrInvalidAccountStatus            = &BusinessError{Kind: ErrorKindInvalidAccountStatus, Message: "invalid account status"}
	ErrInvalidAmount                   = &BusinessError{Kind: ErrorKindInvalidAmount, Message: "invalid amount"}
	ErrDuplicateTransfer               = &BusinessError{Kind: ErrorKindDuplicateTransfer, Message: "duplicate transfer"}
	ErrInvalidTransferStatusTransition = &BusinessError{Kind: ErrorKindInvalidTransferStatusTransition, Message: "invalid transfer status transition"}
	ErrInvalidRequest                  = &BusinessError{Kind: ErrorKindInvalidRequest, Message: "invalid request"}
)

// NewBusinessError builds a business error of the given kind with a formatted message.
func NewBusinessError(kind ErrorKind, format string, args ...any) *BusinessError {
	return &BusinessError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsBusinessError extracts the first BusinessError in err's chain.
func AsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsBusinessError reports whether err carries a business-error kind anywhere in its chain.
func IsBusinessError(err error) bool {
	_, ok := AsBusinessError(err)
	return ok
}

// KindOf returns the business-error kind of err, or "" for non-business errors.
func KindOf(err error) ErrorKind {
	if be, ok := AsBusinessError(err); ok {
		return be.Kind
	}
	return ""
}

// ErrOptimisticLock is the root of every version-conflict error.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

// IsOptimisticLockConflict reports whether err is a version conflict.
func IsOptimisticLockConflict(err error) bool {
	return errors.Is(err, ErrOptimisticLock)
}

// ErrTransferTimeout marks a transfer attempt that exceeded its request deadline.
// It is an infrastructure error and is safe for the client to retry with the same key.
var ErrTransferTimeout = errors.New("transfer request timed out")
