package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/labs-ledger-transfer-engine/internal/domain/account"
	"github.com/labs-ledger-transfer-engine/internal/domain/audit"
	"github.com/labs-ledger-transfer-engine/internal/domain/deadletter"
	"github.com/labs-ledger-transfer-engine/internal/domain/ledger"
	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/shopspring/decimal"
)

// memState is one consistent snapshot of every table.
type memState struct {
	accounts    map[int64]account.Account
	transfers   map[int64]transfer.Transfer
	entries     []ledger.Entry
	audits      []audit.Event
	deadLetters []deadletter.Entry
	nextID      int64
}

func (s *memState) clone() *memState {
	c := &memState{
		accounts:    make(map[int64]account.Account, len(s.accounts)),
		transfers:   make(map[int64]transfer.Transfer, len(s.transfers)),
		entries:     append([]ledger.Entry(nil), s.entries...),
		audits:      append([]audit.Event(nil), s.audits...),
		deadLetters: append([]deadletter.Entry(nil), s.deadLetters...),
		nextID:      s.nextID,
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	return c
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// memFaults injects errors into individual operations. Set before use.
type memFaults struct {
	transferCreate   func(t transfer.Transfer) error
	auditCreate      func(e audit.Event) error
	deadLetterCreate func(e deadletter.Entry) error
	beforeLock       func(ctx context.Context) error
}

type memTxKey struct{}

// memStore is a read-committed store: transactions run one at a time on a private copy
// that replaces the committed state on success. Reads outside a transaction see committed data.
type memStore struct {
	txMu      sync.Mutex
	mu        sync.Mutex
	committed *memState
	faults    memFaults

	lockOrders [][]int64
}

func newMemStore(accounts ...account.Account) *memStore {
	st := &memState{
		accounts:  make(map[int64]account.Account),
		transfers: make(map[int64]transfer.Transfer),
		nextID:    1000,
	}
	for _, acc := range accounts {
		st.accounts[acc.ID] = acc
	}
	return &memStore{committed: st}
}

func memAccount(id int64, balance string) account.Account {
	now := time.Now()
	return account.Account{
		ID:        id,
		OwnerName: "owner",
		Balance:   decimal.RequireFromString(balance),
		Status:    account.StatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Execute implements TransactionExecutor.
func (m *memStore) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memState); ok {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	work := m.committed.clone()
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, work)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.committed = work
	m.mu.Unlock()
	return nil
}

func (m *memStore) read(ctx context.Context, fn func(st *memState)) {
	if st, ok := ctx.Value(memTxKey{}).(*memState); ok {
		fn(st)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.committed)
}

// write outside a transaction behaves as a single-statement transaction.
func (m *memStore) write(ctx context.Context, fn func(st *memState) error) error {
	if st, ok := ctx.Value(memTxKey{}).(*memState); ok {
		return fn(st)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.committed)
}

func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed.clone()
}

func (m *memStore) recordedLockOrders() [][]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]int64(nil), m.lockOrders...)
}

func (m *memStore) Accounts() account.Repository       { return memAccounts{m} }
func (m *memStore) Transfers() transfer.Repository     { return memTransfers{m} }
func (m *memStore) Ledger() ledger.Repository          { return memLedger{m} }
func (m *memStore) Audits() audit.Repository           { return memAudits{m} }
func (m *memStore) DeadLetters() deadletter.Repository { return memDeadLetters{m} }

type memAccounts struct{ m *memStore }

func (r memAccounts) GetByID(ctx context.Context, id int64) (account.Account, error) {
	var (
		acc account.Account
		ok  bool
	)
	r.m.read(ctx, func(st *memState) { acc, ok = st.accounts[id] })
	if !ok {
		return account.Account{}, account.NotFound(id)
	}
	return acc, nil
}

func (r memAccounts) GetByIDForUpdate(ctx context.Context, id int64) (account.Account, error) {
	return r.GetByID(ctx, id)
}

func (r memAccounts) GetByIDsForUpdate(ctx context.Context, ids []int64) ([]account.Account, error) {
	if hook := r.m.faults.beforeLock; hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}

	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	r.m.mu.Lock()
	r.m.lockOrders = append(r.m.lockOrders, sorted)
	r.m.mu.Unlock()

	var found []account.Account
	r.m.read(ctx, func(st *memState) {
		for _, id := range sorted {
			if acc, ok := st.accounts[id]; ok {
				found = append(found, acc)
			}
		}
	})
	return found, nil
}

func (r memAccounts) Update(ctx context.Context, acc account.Account) (account.Account, error) {
	err := r.m.write(ctx, func(st *memState) error {
		stored, ok := st.accounts[acc.ID]
		if !ok || stored.Version != acc.Version-1 {
			return account.ErrConcurrentModification{AccountID: acc.ID}
		}
		st.accounts[acc.ID] = acc
		return nil
	})
	return acc, err
}

type memTransfers struct{ m *memStore }

func (r memTransfers) GetByIdempotencyKey(ctx context.Context, key string) (*transfer.Transfer, error) {
	var found *transfer.Transfer
	r.m.read(ctx, func(st *memState) {
		for _, t := range st.transfers {
			if t.IdempotencyKey == key {
				t := t
				found = &t
				return
			}
		}
	})
	return found, nil
}

func (r memTransfers) Create(ctx context.Context, t transfer.Transfer) (transfer.Transfer, error) {
	if hook := r.m.faults.transferCreate; hook != nil {
		if err := hook(t); err != nil {
			return transfer.Transfer{}, err
		}
	}
	err := r.m.write(ctx, func(st *memState) error {
		for _, existing := range st.transfers {
			if existing.IdempotencyKey == t.IdempotencyKey {
				return shared.NewBusinessError(shared.ErrorKindDuplicateTransfer, "Duplicate transfer: %s", t.IdempotencyKey)
			}
		}
		t.ID = st.id()
		st.transfers[t.ID] = t
		return nil
	})
	if err != nil {
		return transfer.Transfer{}, err
	}
	return t, nil
}

func (r memTransfers) Update(ctx context.Context, t transfer.Transfer) (transfer.Transfer, error) {
	err := r.m.write(ctx, func(st *memState) error {
		if _, ok := st.transfers[t.ID]; !ok {
			return shared.NewBusinessError(shared.ErrorKindInvalidRequest, "Transfer not found: %d", t.ID)
		}
		st.transfers[t.ID] = t
		return nil
	})
	return t, err
}

type memLedger struct{ m *memStore }

func (r memLedger) Create(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	err := r.m.write(ctx, func(st *memState) error {
		e.ID = st.id()
		st.entries = append(st.entries, e)
		return nil
	})
	return e, err
}

type memAudits struct{ m *memStore }

func (r memAudits) Create(ctx context.Context, e audit.Event) (audit.Event, error) {
	if hook := r.m.faults.auditCreate; hook != nil {
		if err := hook(e); err != nil {
			return audit.Event{}, err
		}
	}
	err := r.m.write(ctx, func(st *memState) error {
		e.ID = st.id()
		st.audits = append(st.audits, e)
		return nil
	})
	return e, err
}

type memDeadLetters struct{ m *memStore }

func (r memDeadLetters) Create(ctx context.Context, e deadletter.Entry) (deadletter.Entry, error) {
	if hook := r.m.faults.deadLetterCreate; hook != nil {
		if err := hook(e); err != nil {
			return deadletter.Entry{}, err
		}
	}
	err := r.m.write(ctx, func(st *memState) error {
		e.ID = st.id()
		st.deadLetters = append(st.deadLetters, e)
		return nil
	})
	return e, err
}

func (r memDeadLetters) GetByIdempotencyKeyAndType(ctx context.Context, key string, eventType deadletter.EventType) (*deadletter.Entry, error) {
	var found *deadletter.Entry
	r.m.read(ctx, func(st *memState) {
		for i := len(st.deadLetters) - 1; i >= 0; i-- {
			if st.deadLetters[i].IdempotencyKey == key && st.deadLetters[i].EventType == eventType {
				e := st.deadLetters[i]
				found = &e
				return
			}
		}
	})
	return found, nil
}

func (r memDeadLetters) GetUnprocessedAfter(ctx context.Context, afterID int64, limit int) ([]deadletter.Entry, error) {
	var out []deadletter.Entry
	r.m.read(ctx, func(st *memState) {
		for _, e := range st.deadLetters {
			if !e.Processed && e.ID > afterID && len(out) < limit {
				out = append(out, e)
			}
		}
	})
	return out, nil
}

func (r memDeadLetters) MarkProcessed(ctx context.Context, id int64) error {
	return r.m.write(ctx, func(st *memState) error {
		for i, e := range st.deadLetters {
			if e.ID == id {
				st.deadLetters[i] = e.MarkProcessed(time.Now())
				return nil
			}
		}
		return deadletter.ErrEntryNotFound{ID: id}
	})
}

func (r memDeadLetters) CountUnprocessed(ctx context.Context) (int64, error) {
	var n int64
	r.m.read(ctx, func(st *memState) {
		for _, e := range st.deadLetters {
			if !e.Processed {
				n++
			}
		}
	})
	return n, nil
}

// mapRegistry is a FailureRegistry without eviction.
type mapRegistry struct {
	mu      sync.Mutex
	records map[string]transfer.FailureRecord
	hits    int64
	misses  int64
}

func newMapRegistry() *mapRegistry {
	return &mapRegistry{records: make(map[string]transfer.FailureRecord)}
}

func (r *mapRegistry) Register(key string, record transfer.FailureRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key] = record
}

func (r *mapRegistry) Get(key string) (transfer.FailureRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if ok {
		r.hits++
	} else {
		r.misses++
	}
	return rec, ok
}

func (r *mapRegistry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key)
}

func (r *mapRegistry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *mapRegistry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RegistryStats{Hits: r.hits, Misses: r.misses, Size: len(r.records)}
}
