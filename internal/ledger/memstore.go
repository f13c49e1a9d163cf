package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/podlabs/podmint/internal/pod"
)

// MemStore implements Store in memory. WithPool serializes on a per-key
// mutex, giving the same no-stale-read guarantee as the Postgres row lock.
// Used by tests and by commands that evaluate without a database.
type MemStore struct {
	mu      sync.Mutex
	pools   map[poolKey]*memPool
	records []pod.AllocationRecord
	state   pod.TokenomicsState
}

type poolKey struct {
	epoch pod.Epoch
	metal pod.Metal
}

type memPool struct {
	mu   sync.Mutex
	pool pod.EpochMetalPool
}

// NewMemStore seeds an in-memory store with the given pools.
func NewMemStore(pools []pod.EpochMetalPool) *MemStore {
	s := &MemStore{
		pools: make(map[poolKey]*memPool, len(pools)),
		state: pod.TokenomicsState{UpdatedAt: time.Now().UTC()},
	}
	for _, p := range pools {
		s.pools[poolKey{p.Epoch, p.Metal}] = &memPool{pool: p}
	}
	return s
}

func (s *MemStore) lookup(epoch pod.Epoch, metal pod.Metal) (*memPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[poolKey{epoch, metal}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrPoolNotFound, epoch, metal)
	}
	return p, nil
}

// WithPool holds the pool's mutex for the duration of fn. Staged
// mutations apply only when fn returns nil.
func (s *MemStore) WithPool(ctx context.Context, epoch pod.Epoch, metal pod.Metal, fn func(tx PoolTx) error) error {
	p, err := s.lookup(epoch, metal)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tx := &memPoolTx{store: s, pool: p.pool, balance: p.pool.Balance}
	if err := fn(tx); err != nil {
		return err
	}

	if len(tx.staged) > 0 {
		s.mu.Lock()
		// Mirror the unique (submission_hash, metal) index: a racing
		// allocate against a different epoch commits first, the loser
		// conflicts and its retry observes the existing record.
		for _, staged := range tx.staged {
			for _, r := range s.records {
				if r.SubmissionHash == staged.SubmissionHash && r.Metal == staged.Metal {
					s.mu.Unlock()
					return fmt.Errorf("%w: duplicate allocation for %s/%s", ErrConflict, staged.SubmissionHash, staged.Metal)
				}
			}
		}
		s.records = append(s.records, tx.staged...)
		s.mu.Unlock()
	}
	p.pool.Balance = tx.balance
	p.pool.UpdatedAt = time.Now().UTC()
	return nil
}

// Pool reads one pool row.
func (s *MemStore) Pool(ctx context.Context, epoch pod.Epoch, metal pod.Metal) (pod.EpochMetalPool, error) {
	p, err := s.lookup(epoch, metal)
	if err != nil {
		return pod.EpochMetalPool{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool, nil
}

// Pools reads every pool row in epoch/metal order.
func (s *MemStore) Pools(ctx context.Context) ([]pod.EpochMetalPool, error) {
	var pools []pod.EpochMetalPool
	for _, e := range pod.EpochsInOrder {
		for _, m := range pod.Metals {
			p, err := s.Pool(ctx, e, m)
			if err != nil {
				continue
			}
			pools = append(pools, p)
		}
	}
	return pools, nil
}

// Records reads matching allocation records, newest first.
func (s *MemStore) Records(ctx context.Context, filter RecordFilter) ([]pod.AllocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []pod.AllocationRecord
	for _, r := range s.records {
		if filter.SubmissionHash != "" && r.SubmissionHash != filter.SubmissionHash {
			continue
		}
		if filter.Epoch != "" && r.Epoch != filter.Epoch {
			continue
		}
		if filter.Metal != "" && r.Metal != filter.Metal {
			continue
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Tokenomics reads the network activity counter.
func (s *MemStore) Tokenomics(ctx context.Context) (pod.TokenomicsState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// AddCoherenceDensity advances the network activity counter.
func (s *MemStore) AddCoherenceDensity(ctx context.Context, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TotalCoherenceDensity += delta
	s.state.UpdatedAt = time.Now().UTC()
	return nil
}

// SetBalanceRaw overwrites a pool balance outside the ledger path. Test
// hook simulating external corruption for reconcile coverage.
func (s *MemStore) SetBalanceRaw(epoch pod.Epoch, metal pod.Metal, balance int64) error {
	p, err := s.lookup(epoch, metal)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pool.Balance = balance
	return nil
}

// memPoolTx stages mutations against the locked pool.
type memPoolTx struct {
	store   *MemStore
	pool    pod.EpochMetalPool
	balance int64
	staged  []pod.AllocationRecord
}

func (t *memPoolTx) Pool() pod.EpochMetalPool { return t.pool }

func (t *memPoolTx) SumRewards(ctx context.Context) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var sum int64
	for _, r := range t.store.records {
		if r.Epoch == t.pool.Epoch && r.Metal == t.pool.Metal {
			sum += r.Reward
		}
	}
	return sum, nil
}

func (t *memPoolTx) FindRecord(ctx context.Context, submissionHash string, metal pod.Metal) (*pod.AllocationRecord, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, r := range t.store.records {
		if r.SubmissionHash == submissionHash && r.Metal == metal {
			record := r
			return &record, nil
		}
	}
	return nil, nil
}

func (t *memPoolTx) SetBalance(ctx context.Context, balance int64) error {
	t.balance = balance
	return nil
}

func (t *memPoolTx) AppendRecord(ctx context.Context, record pod.AllocationRecord) error {
	t.staged = append(t.staged, record)
	return nil
}
