package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/domain/deadletter"
	"github.com/labs-ledger-transfer-engine/internal/metrics"
	"github.com/labs-ledger-transfer-engine/internal/platform/retry"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPolicy makes two attempts with millisecond delays.
func newTestPolicy() *retry.ExponentialPolicy {
	return retry.NewExponentialPolicy(discardLogger(), 2, time.Millisecond, 2*time.Millisecond)
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []deadletter.Alert
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, alert deadletter.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *recordingNotifier) recorded() []deadletter.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]deadletter.Alert(nil), n.alerts...)
}

type harness struct {
	store      *memStore
	registry   *mapRegistry
	pool       *WorkerPool
	notifier   *recordingNotifier
	durability *FailureDurability
	transfers  *TransferService
}

type harnessOption func(h *harnessConfig)

type harnessConfig struct {
	requestTimeout time.Duration
	retryAttempts  int
}

func withRequestTimeout(d time.Duration) harnessOption {
	return func(c *harnessConfig) { c.requestTimeout = d }
}

func newHarness(t *testing.T, store *memStore, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{requestTimeout: 5 * time.Second, retryAttempts: 2}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := discardLogger()
	pool, err := NewWorkerPool(WorkerPoolConfig{Size: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Shutdown(2 * time.Second) })

	registry := newMapRegistry()
	notifier := &recordingNotifier{}
	m := metrics.New()
	policy := retry.NewExponentialPolicy(logger, cfg.retryAttempts, time.Millisecond, 2*time.Millisecond)

	durability := NewFailureDurability(store, store.Transfers(), store.Audits(), store.DeadLetters(),
		registry, policy, pool, notifier, m, logger)
	svc := NewTransferService(store, store.Accounts(), store.Transfers(), store.Ledger(),
		registry, durability, cfg.requestTimeout, m, logger)

	return &harness{
		store:      store,
		registry:   registry,
		pool:       pool,
		notifier:   notifier,
		durability: durability,
		transfers:  svc,
	}
}
