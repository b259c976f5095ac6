package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// WorkerPool runs background durability tasks on a bounded ants pool.
// A rejected submission falls back to a fresh goroutine so no task is dropped.
type WorkerPool struct {
	pool     *ants.Pool
	logger   *slog.Logger
	inFlight sync.WaitGroup
}

type WorkerPoolConfig struct {
	Size int
}

var _ TaskRunner = (*WorkerPool)(nil)

func NewWorkerPool(config WorkerPoolConfig, logger *slog.Logger) (*WorkerPool, error) {
	pool, err := ants.NewPool(config.Size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &WorkerPool{
		pool:   pool,
		logger: logger.With("component", "worker_pool"),
	}, nil
}

// Submit schedules task. Panics inside task are recovered and logged.
func (w *WorkerPool) Submit(task func()) error {
	w.inFlight.Add(1)
	guarded := func() {
		defer w.inFlight.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Background task panicked", "panic", r)
			}
		}()
		task()
	}

	if err := w.pool.Submit(guarded); err != nil {
		w.logger.Warn("Worker pool rejected task, running on dedicated goroutine",
			"error", err,
			"running_workers", w.pool.Running(),
		)
		go guarded()
	}
	return nil
}

// Shutdown waits up to timeout for in-flight tasks, then releases the pool.
func (w *WorkerPool) Shutdown(timeout time.Duration) {
	w.logger.Info("Shutting down worker pool", "running_workers", w.pool.Running())

	done := make(chan struct{})
	go func() {
		w.inFlight.Wait()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("Worker pool shutdown timed out with tasks still running", "running_workers", w.pool.Running())
	}
	w.pool.Release()
}

// Running returns the number of running workers in the pool.
func (w *WorkerPool) Running() int {
	return w.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (w *WorkerPool) Capacity() int {
	return w.pool.Cap()
}
