package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
)

// conflictDelays is the wait before attempts 1, 2, 3...; the last value repeats.
var conflictDelays = []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}

type conflictSchedule struct {
	next int
}

func (s *conflictSchedule) NextBackOff() time.Duration {
	d := conflictDelays[min(s.next, len(conflictDelays)-1)]
	s.next++
	return d
}

func (s *conflictSchedule) Reset() {
	s.next = 0
}

// OnOptimisticLock runs op up to maxAttempts times while it keeps failing with a version
// conflict. Any other error is returned immediately. On exhaustion the last conflict is returned.
func OnOptimisticLock(ctx context.Context, maxAttempts int, op func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	b := backoff.WithContext(backoff.WithMaxRetries(&conflictSchedule{}, uint64(maxAttempts-1)), ctx)
	err := backoff.Retry(func() error {
		lastErr = op(ctx)
		if lastErr != nil && !shared.IsOptimisticLockConflict(lastErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}, b)
	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}
