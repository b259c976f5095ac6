package account

import (
	"strings"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusClosed    Status = "CLOSED"
)

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusActive, StatusSuspended, StatusClosed:
		return st, true
	default:
		return "", false
	}
}

// Account is an immutable snapshot of a ledger account.
// Every mutating method returns a new value with a bumped Version; the receiver is never changed.
type Account struct {
	ID        int64           `json:"id"`
	OwnerName string          `json:"owner_name"`
	Balance   decimal.Decimal `json:"balance"`
	Status    Status          `json:"status"`
	Version   int64           `json:"version"` // For optimistic locking
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Deposit adds amount to the balance of an active account.
func (a Account) Deposit(amount decimal.Decimal) (Account, error) {
	if err := a.requireActive(); err != nil {
		return Account{}, err
	}
	if err := requirePositive(amount); err != nil {
		return Account{}, err
	}

	next := a.touch()
	next.Balance = a.Balance.Add(amount)
	return next, nil
}

// Withdraw subtracts amount from the balance of an active account, never below zero.
func (a Account) Withdraw(amount decimal.Decimal) (Account, error) {
	if err := a.requireActive(); err != nil {
		return Account{}, err
	}
	if err := requirePositive(amount); err != nil {
		return Account{}, err
	}
	if a.Balance.LessThan(amount) {
		return Account{}, shared.NewBusinessError(shared.ErrorKindInsufficientBalance,
			"Insufficient balance. Current: %s, Requested: %s", a.Balance.String(), amount.String())
	}

	next := a.touch()
	next.Balance = a.Balance.Sub(amount)
	return next, nil
}

// Suspend moves an active account to SUSPENDED.
func (a Account) Suspend() (Account, error) {
	switch a.Status {
	case StatusClosed:
		return Account{}, invalidStatus("Cannot suspend a closed account")
	case StatusSuspended:
		return Account{}, invalidStatus("Account is already suspended")
	}
	return a.withStatus(StatusSuspended), nil
}

// Activate moves a suspended account back to ACTIVE.
func (a Account) Activate() (Account, error) {
	switch a.Status {
	case StatusClosed:
		return Account{}, invalidStatus("Cannot activate a closed account")
	case StatusActive:
		return Account{}, invalidStatus("Account is already active")
	}
	return a.withStatus(StatusActive), nil
}

// Close is terminal; a closed account accepts no further transitions.
func (a Account) Close() (Account, error) {
	if a.Status == StatusClosed {
		return Account{}, invalidStatus("Account is already closed")
	}
	return a.withStatus(StatusClosed), nil
}

// TransitionTo applies the transition that leads to target.
func (a Account) TransitionTo(target Status) (Account, error) {
	switch target {
	case StatusActive:
		return a.Activate()
	case StatusSuspended:
		return a.Suspend()
	case StatusClosed:
		return a.Close()
	default:
		return Account{}, shared.NewBusinessError(shared.ErrorKindInvalidRequest, "Unknown account status: %s", target)
	}
}

// IsActive reports whether the account accepts balance mutations.
func (a Account) IsActive() bool {
	return a.Status == StatusActive
}

func (a Account) requireActive() error {
	if a.Status != StatusActive {
		return invalidStatus("Account is not active: " + string(a.Status))
	}
	return nil
}

func (a Account) withStatus(s Status) Account {
	next := a.touch()
	next.Status = s
	return next
}

func (a Account) touch() Account {
	a.Version++
	a.UpdatedAt = time.Now()
	return a
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewBusinessError(shared.ErrorKindInvalidAmount, "Amount must be positive: %s", amount.String())
	}
	if !shared.FitsAmountScale(amount) {
		return shared.NewBusinessError(shared.ErrorKindInvalidAmount, "Amount must have at most %d decimal places: %s", shared.AmountScale, amount.String())
	}
	return nil
}

func invalidStatus(msg string) error {
	return &shared.BusinessError{Kind: shared.ErrorKindInvalidAccountStatus, Message: msg}
}
