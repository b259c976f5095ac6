package transfer

import (
	"strings"
	"testing"

	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCommand() Command {
	return Command{
		IdempotencyKey: "k2",
		FromAccountID:  1,
		ToAccountID:    2,
		Amount:         decimal.RequireFromString("300.00"),
		Description:    "rent",
	}
}

func TestNew(t *testing.T) {
	t.Run("ValidCommand", func(t *testing.T) {
		tr, err := New(validCommand())

		require.NoError(t, err)
		assert.Equal(t, StatusPending, tr.Status)
		assert.Equal(t, "k2", tr.IdempotencyKey)
		assert.Equal(t, int64(0), tr.ID)
		assert.Equal(t, "rent", tr.Description)
		assert.False(t, tr.IsTerminal())
	})

	tests := []struct {
		name   string
		mutate func(c *Command)
		msg    string
	}{
		{"blank key", func(c *Command) { c.IdempotencyKey = "   " }, "Idempotency key must not be blank"},
		{"long key", func(c *Command) { c.IdempotencyKey = strings.Repeat("x", 256) }, "must not exceed 255 characters"},
		{"same account", func(c *Command) { c.ToAccountID = c.FromAccountID }, "Cannot transfer to the same account"},
		{"zero amount", func(c *Command) { c.Amount = decimal.Zero }, "Amount must be positive"},
		{"negative amount", func(c *Command) { c.Amount = decimal.NewFromInt(-5) }, "Amount must be positive"},
		{"sub-cent amount", func(c *Command) { c.Amount = decimal.RequireFromString("0.005") }, "at most 2 decimal places"},
		{"sub-cent remainder", func(c *Command) { c.Amount = decimal.RequireFromString("10.001") }, "at most 2 decimal places"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := validCommand()
			tt.mutate(&cmd)

			_, err := New(cmd)

			assert.ErrorIs(t, err, shared.ErrInvalidRequest)
			assert.NotErrorIs(t, err, shared.ErrInvalidTransferStatusTransition)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestNew_TrailingZerosFitScale(t *testing.T) {
	cmd := validCommand()
	cmd.Amount = decimal.RequireFromString("1.500")

	tr, err := New(cmd)

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.5").Equal(tr.Amount))
}

func TestTransfer_Lifecycle(t *testing.T) {
	pending, err := New(validCommand())
	require.NoError(t, err)

	completed, err := pending.Complete()
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.Equal(t, StatusPending, pending.Status)

	failed, err := pending.Fail("Insufficient balance")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "Insufficient balance", failed.FailureReason)

	_, err = pending.Fail("  ")
	assert.ErrorIs(t, err, shared.ErrInvalidRequest)

	for _, terminal := range []Transfer{completed, failed} {
		_, err := terminal.Complete()
		assert.ErrorIs(t, err, shared.ErrInvalidTransferStatusTransition)
		assert.Contains(t, err.Error(), "Current status: "+string(terminal.Status))

		_, err = terminal.Fail("again")
		assert.ErrorIs(t, err, shared.ErrInvalidTransferStatusTransition)
	}
}

func TestTransfer_SortedAccountIDs(t *testing.T) {
	assert.Equal(t, []int64{3, 9}, Transfer{FromAccountID: 9, ToAccountID: 3}.SortedAccountIDs())
	assert.Equal(t, []int64{3, 9}, Transfer{FromAccountID: 3, ToAccountID: 9}.SortedAccountIDs())
}

func TestNewFailureRecord(t *testing.T) {
	pending, err := New(validCommand())
	require.NoError(t, err)
	failed, err := pending.Fail("Account not found: 2")
	require.NoError(t, err)

	rec := NewFailureRecord(failed, "Account not found: 2")

	assert.Equal(t, failed, rec.Transfer)
	assert.Equal(t, "Account not found: 2", rec.ErrorMessage)
	assert.False(t, rec.RegisteredAt.IsZero())
}
