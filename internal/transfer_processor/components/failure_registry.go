package components

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/labs-ledger-transfer-engine/internal/transfer_processor/service"
)

const (
	DefaultFailureRegistryTTL     = time.Hour
	DefaultFailureRegistryMaxSize = 10000
)

// InMemoryFailureRegistry caches FAILED transfers by idempotency key until their rows are durable.
// Entries expire a fixed TTL after registration; past MaxSize the least recently used entry is evicted.
type InMemoryFailureRegistry struct {
	cache  *expirable.LRU[string, transfer.FailureRecord]
	logger *slog.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	evicted  atomic.Int64 // every eviction callback, including explicit removals
	removals atomic.Int64
}

var _ service.FailureRegistry = (*InMemoryFailureRegistry)(nil)

func NewInMemoryFailureRegistry(logger *slog.Logger, ttl time.Duration, maxSize int) *InMemoryFailureRegistry {
	if ttl <= 0 {
		ttl = DefaultFailureRegistryTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultFailureRegistryMaxSize
	}

	r := &InMemoryFailureRegistry{
		logger: logger.With("component", "failure_registry"),
	}
	r.cache = expirable.NewLRU[string, transfer.FailureRecord](maxSize, r.onEvict, ttl)

	r.logger.Info("Failure registry initialized", "ttl", ttl, "max_size", maxSize)
	return r
}

func (r *InMemoryFailureRegistry) Register(key string, record transfer.FailureRecord) {
	r.cache.Add(key, record)
	r.logger.Debug("Registered failed transfer", "idempotency_key", key, "size", r.cache.Len())
}

func (r *InMemoryFailureRegistry) Get(key string) (transfer.FailureRecord, bool) {
	record, ok := r.cache.Get(key)
	if ok {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	return record, ok
}

func (r *InMemoryFailureRegistry) Remove(key string) {
	if r.cache.Remove(key) {
		r.removals.Add(1)
		r.logger.Debug("Removed failed transfer", "idempotency_key", key)
	}
}

func (r *InMemoryFailureRegistry) Size() int {
	return r.cache.Len()
}

func (r *InMemoryFailureRegistry) Stats() service.RegistryStats {
	hits, misses := r.hits.Load(), r.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return service.RegistryStats{
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Evictions: max(r.evicted.Load()-r.removals.Load(), 0),
		Size:      r.cache.Len(),
	}
}

func (r *InMemoryFailureRegistry) onEvict(key string, record transfer.FailureRecord) {
	r.evicted.Add(1)
	r.logger.Debug("Failure record left registry", "idempotency_key", key, "registered_at", record.RegisteredAt)
}
