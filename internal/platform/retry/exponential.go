// Package retry provides the backoff policies used by the transfer engine.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultMaxDelay     = time.Second
)

// Result reports how an Execute call ended. LastErr is nil on success.
type Result struct {
	Attempts int
	LastErr  error
}

// Succeeded reports whether the operation eventually returned nil.
func (r Result) Succeeded() bool {
	return r.LastErr == nil
}

// Policy runs an operation with retries and never returns an error of its own;
// callers inspect the Result to tell "gave up" from "succeeded".
type Policy interface {
	Execute(ctx context.Context, op func(ctx context.Context) error) Result
}

// ExponentialPolicy retries with delays of min(initial*2^i, max) after attempt i.
// Business errors stop the loop after the attempt that produced them.
type ExponentialPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	retryable    func(error) bool
	logger       *slog.Logger
}

// Option customises an ExponentialPolicy.
type Option func(*ExponentialPolicy)

// WithRetryable replaces the default classifier, which retries everything except business errors.
func WithRetryable(fn func(error) bool) Option {
	return func(p *ExponentialPolicy) {
		p.retryable = fn
	}
}

func NewExponentialPolicy(logger *slog.Logger, maxAttempts int, initialDelay, maxDelay time.Duration, opts ...Option) *ExponentialPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}
	p := &ExponentialPolicy{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		retryable:    func(err error) bool { return !shared.IsBusinessError(err) },
		logger:       logger.With("component", "retry_policy"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxAttempts returns the configured attempt ceiling.
func (p *ExponentialPolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *ExponentialPolicy) Execute(ctx context.Context, op func(ctx context.Context) error) Result {
	var (
		attempts int
		lastErr  error
	)

	err := backoff.RetryNotify(func() error {
		attempts++
		lastErr = op(ctx)
		if lastErr != nil && !p.retryable(lastErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}, backoff.WithContext(p.schedule(), ctx), func(err error, next time.Duration) {
		p.logger.Warn("Operation failed, retrying", "attempt", attempts, "max_attempts", p.maxAttempts, "next_delay", next, "error", err)
	})

	if err == nil {
		return Result{Attempts: attempts}
	}
	if lastErr == nil {
		// cancelled before the first attempt
		lastErr = err
	}

	if shared.IsBusinessError(lastErr) {
		p.logger.Info("Operation stopped on business error", "attempt", attempts, "error", lastErr)
	} else {
		p.logger.Error("Operation failed after retries", "attempts", attempts, "error", lastErr)
	}
	return Result{Attempts: attempts, LastErr: lastErr}
}

func (p *ExponentialPolicy) schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.maxDelay
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(p.maxAttempts-1))
}
