package dead_letter_monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/config"
	"github.com/labs-ledger-transfer-engine/internal/domain/deadletter"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/labs-ledger-transfer-engine/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDeadLetterRepo struct {
	mock.Mock
}

func (m *MockDeadLetterRepo) Create(ctx context.Context, entry deadletter.Entry) (deadletter.Entry, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(deadletter.Entry), args.Error(1)
}

func (m *MockDeadLetterRepo) GetByIdempotencyKeyAndType(ctx context.Context, key string, eventType deadletter.EventType) (*deadletter.Entry, error) {
	args := m.Called(ctx, key, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deadletter.Entry), args.Error(1)
}

func (m *MockDeadLetterRepo) GetUnprocessedAfter(ctx context.Context, afterID int64, limit int) ([]deadletter.Entry, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]deadletter.Entry), args.Error(1)
}

func (m *MockDeadLetterRepo) MarkProcessed(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDeadLetterRepo) CountUnprocessed(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockAlertPublisher struct {
	mock.Mock
}

func (m *MockAlertPublisher) NotifyFailure(ctx context.Context, alert deadletter.Alert) error {
	return m.Called(ctx, alert).Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(t *testing.T, id int64, key string) deadletter.Entry {
	t.Helper()
	e, err := deadletter.NewEntry(deadletter.EventTypeFailurePersistenceFailed,
		deadletter.Payload{IdempotencyKey: key, Amount: "10", TransferStatus: transfer.StatusFailed},
		errors.New("connection refused"), 3)
	require.NoError(t, err)
	e.ID = id
	return e
}

func newTestMonitor(repo deadletter.Repository, publisher AlertPublisher) *Monitor {
	return newTestMonitorWithBatch(repo, publisher, 10)
}

func newTestMonitorWithBatch(repo deadletter.Repository, publisher AlertPublisher, batchSize int) *Monitor {
	cfg := &config.DeadLetterMonitorConfig{PollingInterval: 10 * time.Millisecond, BatchSize: batchSize}
	return NewMonitor(cfg, repo, publisher, metrics.New(), testLogger())
}

func TestMonitor_Scan(t *testing.T) {
	ctx := context.Background()

	t.Run("announces each entry once", func(t *testing.T) {
		repo := &MockDeadLetterRepo{}
		publisher := &MockAlertPublisher{}
		monitor := newTestMonitor(repo, publisher)

		first, second := entry(t, 1, "k1"), entry(t, 2, "k2")
		repo.On("CountUnprocessed", mock.Anything).Return(int64(2), nil).Twice()
		repo.On("GetUnprocessedAfter", mock.Anything, int64(0), 10).Return([]deadletter.Entry{first, second}, nil).Once()
		repo.On("GetUnprocessedAfter", mock.Anything, int64(2), 10).Return([]deadletter.Entry{}, nil).Once()
		publisher.On("NotifyFailure", mock.Anything, mock.MatchedBy(func(a deadletter.Alert) bool {
			return a.Stage == deadletter.AlertStageDeadLettered && a.DeadLetterID == 1 && a.Payload.IdempotencyKey == "k1"
		})).Return(nil).Once()
		publisher.On("NotifyFailure", mock.Anything, mock.MatchedBy(func(a deadletter.Alert) bool {
			return a.DeadLetterID == 2 && a.Reason == "connection refused"
		})).Return(nil).Once()

		require.NoError(t, monitor.scan(ctx))
		require.NoError(t, monitor.scan(ctx))
		assert.Equal(t, int64(2), monitor.highWater)

		repo.AssertExpectations(t)
		publisher.AssertExpectations(t)
		repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
	})

	t.Run("empty backlog", func(t *testing.T) {
		repo := &MockDeadLetterRepo{}
		publisher := &MockAlertPublisher{}
		monitor := newTestMonitor(repo, publisher)

		repo.On("CountUnprocessed", mock.Anything).Return(int64(0), nil).Once()

		require.NoError(t, monitor.scan(ctx))
		repo.AssertNotCalled(t, "GetUnprocessedAfter", mock.Anything, mock.Anything, mock.Anything)
		publisher.AssertNotCalled(t, "NotifyFailure", mock.Anything, mock.Anything)
	})

	t.Run("publish failure is retried next tick", func(t *testing.T) {
		repo := &MockDeadLetterRepo{}
		publisher := &MockAlertPublisher{}
		monitor := newTestMonitor(repo, publisher)

		first := entry(t, 5, "k5")
		repo.On("CountUnprocessed", mock.Anything).Return(int64(1), nil)
		repo.On("GetUnprocessedAfter", mock.Anything, int64(0), 10).Return([]deadletter.Entry{first}, nil).Twice()
		publisher.On("NotifyFailure", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
		publisher.On("NotifyFailure", mock.Anything, mock.Anything).Return(nil).Once()

		assert.Error(t, monitor.scan(ctx))
		assert.Zero(t, monitor.highWater)
		require.NoError(t, monitor.scan(ctx))
		assert.Equal(t, int64(5), monitor.highWater)
		publisher.AssertExpectations(t)
	})

	t.Run("backlog larger than the batch is paged", func(t *testing.T) {
		repo := &MockDeadLetterRepo{}
		publisher := &MockAlertPublisher{}
		monitor := newTestMonitorWithBatch(repo, publisher, 2)

		first, second, third := entry(t, 1, "k1"), entry(t, 2, "k2"), entry(t, 3, "k3")
		repo.On("CountUnprocessed", mock.Anything).Return(int64(3), nil)
		repo.On("GetUnprocessedAfter", mock.Anything, int64(0), 2).Return([]deadletter.Entry{first, second}, nil).Once()
		repo.On("GetUnprocessedAfter", mock.Anything, int64(2), 2).Return([]deadletter.Entry{third}, nil).Once()
		repo.On("GetUnprocessedAfter", mock.Anything, int64(3), 2).Return([]deadletter.Entry{}, nil)

		var announced []int64
		publisher.On("NotifyFailure", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			announced = append(announced, args.Get(1).(deadletter.Alert).DeadLetterID)
		})

		for i := 0; i < 3; i++ {
			require.NoError(t, monitor.scan(ctx))
		}

		assert.Equal(t, []int64{1, 2, 3}, announced)
		assert.Equal(t, int64(3), monitor.highWater)
		repo.AssertExpectations(t)
	})

	t.Run("page failure keeps announced entries", func(t *testing.T) {
		repo := &MockDeadLetterRepo{}
		publisher := &MockAlertPublisher{}
		monitor := newTestMonitorWithBatch(repo, publisher, 1)

		repo.On("CountUnprocessed", mock.Anything).Return(int64(2), nil).Once()
		repo.On("GetUnprocessedAfter", mock.Anything, int64(0), 1).Return([]deadletter.Entry{entry(t, 4, "k4")}, nil).Once()
		repo.On("GetUnprocessedAfter", mock.Anything, int64(4), 1).Return(nil, errors.New("conn reset")).Once()
		publisher.On("NotifyFailure", mock.Anything, mock.Anything).Return(nil).Once()

		err := monitor.scan(ctx)
		assert.ErrorContains(t, err, "failed to get unprocessed dead letter entries")
		assert.Equal(t, int64(4), monitor.highWater)
		publisher.AssertExpectations(t)
	})

	t.Run("count failure", func(t *testing.T) {
		repo := &MockDeadLetterRepo{}
		monitor := newTestMonitor(repo, &MockAlertPublisher{})
		repo.On("CountUnprocessed", mock.Anything).Return(int64(0), errors.New("db down")).Once()

		err := monitor.scan(ctx)
		assert.ErrorContains(t, err, "failed to count unprocessed dead letter entries")
	})

	t.Run("without publisher only the gauge is kept", func(t *testing.T) {
		repo := &MockDeadLetterRepo{}
		monitor := newTestMonitor(repo, nil)
		repo.On("CountUnprocessed", mock.Anything).Return(int64(3), nil).Once()

		require.NoError(t, monitor.scan(ctx))
		repo.AssertNotCalled(t, "GetUnprocessedAfter", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMonitor_StartStopsOnCancel(t *testing.T) {
	scanned := make(chan struct{}, 1)
	repo := &MockDeadLetterRepo{}
	repo.On("CountUnprocessed", mock.Anything).Return(int64(0), nil).Run(func(mock.Arguments) {
		select {
		case scanned <- struct{}{}:
		default:
		}
	})
	monitor := newTestMonitor(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Start(ctx)
		close(done)
	}()

	select {
	case <-scanned:
	case <-time.After(time.Second):
		t.Fatal("monitor never scanned")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
