package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/podlabs/podmint/internal/pod"
)

var (
	// ErrInsufficientBalance means the pool cannot cover the requested
	// amount. Reported per metal; other metals proceed independently.
	ErrInsufficientBalance = errors.New("insufficient pool balance")
	// ErrConflict means lock/serialization contention persisted past the
	// bounded retries. Transient; distinct from ErrInsufficientBalance.
	ErrConflict = errors.New("allocation conflict")
	// ErrPoolNotFound means the (epoch, metal) pool row does not exist.
	ErrPoolNotFound = errors.New("pool not found")
)

// Config holds the ledger tunables.
type Config struct {
	// DustThreshold is the balance at or below which a pool counts as
	// fully allocated for epoch scanning.
	DustThreshold int64
	// MaxAttempts bounds retries on serialization conflicts.
	MaxAttempts int
	// RetryBackoff is the pause between retry attempts.
	RetryBackoff time.Duration
}

// DefaultConfig returns the stock ledger configuration.
func DefaultConfig() Config {
	return Config{
		DustThreshold: pod.TokenUnit,
		MaxAttempts:   3,
		RetryBackoff:  50 * time.Millisecond,
	}
}

// Ledger owns all EpochMetalPool mutation and is the sole writer of
// allocation records. Every balance change happens inside a store
// transaction holding the pool row lock.
type Ledger struct {
	store  Store
	config Config
}

// New creates a ledger over the given store.
func New(store Store, config Config) *Ledger {
	return &Ledger{store: store, config: config}
}

// AllocateResult reports one committed (or previously committed)
// allocation.
type AllocateResult struct {
	Record pod.AllocationRecord
	// Existing is true when the idempotency key already had a record; the
	// call is then a no-op success referencing that record.
	Existing bool
}

// Allocate atomically decrements the (epoch, metal) pool by amount and
// appends the audit record. A submission is allocated at most once per
// metal: retries and duplicate requests surface the existing record.
// Serialization conflicts are retried with bounded backoff before
// ErrConflict is returned.
func (l *Ledger) Allocate(ctx context.Context, epoch pod.Epoch, metal pod.Metal, amount int64, contributor, submissionHash string) (AllocateResult, error) {
	if amount <= 0 {
		return AllocateResult{}, fmt.Errorf("allocation amount must be positive, got %d", amount)
	}
	if submissionHash == "" {
		return AllocateResult{}, fmt.Errorf("submission hash required")
	}

	var result AllocateResult
	attempt := func() error {
		return l.store.WithPool(ctx, epoch, metal, func(tx PoolTx) error {
			existing, err := tx.FindRecord(ctx, submissionHash, metal)
			if err != nil {
				return fmt.Errorf("idempotency lookup: %w", err)
			}
			if existing != nil {
				result = AllocateResult{Record: *existing, Existing: true}
				return nil
			}

			pool := tx.Pool()
			if amount > pool.Balance {
				return fmt.Errorf("%w: pool %s/%s has %d, need %d",
					ErrInsufficientBalance, epoch, metal, pool.Balance, amount)
			}

			record := pod.AllocationRecord{
				ID:             uuid.NewString(),
				SubmissionHash: submissionHash,
				Contributor:    contributor,
				Epoch:          epoch,
				Metal:          metal,
				Reward:         amount,
				BalanceBefore:  pool.Balance,
				BalanceAfter:   pool.Balance - amount,
				CreatedAt:      time.Now().UTC(),
			}
			if err := tx.SetBalance(ctx, record.BalanceAfter); err != nil {
				return fmt.Errorf("update balance: %w", err)
			}
			if err := tx.AppendRecord(ctx, record); err != nil {
				return fmt.Errorf("append record: %w", err)
			}
			result = AllocateResult{Record: record}
			return nil
		})
	}

	var err error
	for i := 0; i < l.config.MaxAttempts; i++ {
		err = attempt()
		if err == nil || !errors.Is(err, ErrConflict) {
			return result, err
		}
		select {
		case <-ctx.Done():
			return AllocateResult{}, ctx.Err()
		case <-time.After(l.config.RetryBackoff):
		}
	}
	return AllocateResult{}, err
}

// Reconcile recomputes the pool balance from the genesis amount minus the
// recorded rewards and repairs any drift. Idempotent; safe to run on
// demand or before epoch scans.
func (l *Ledger) Reconcile(ctx context.Context, epoch pod.Epoch, metal pod.Metal) (drift int64, err error) {
	err = l.store.WithPool(ctx, epoch, metal, func(tx PoolTx) error {
		pool := tx.Pool()
		allocated, err := tx.SumRewards(ctx)
		if err != nil {
			return fmt.Errorf("sum rewards: %w", err)
		}

		want := pool.DistributionAmount - allocated
		if want < 0 {
			want = 0
		}
		if want > pool.DistributionAmount {
			want = pool.DistributionAmount
		}
		if want == pool.Balance {
			return nil
		}
		drift = pool.Balance - want
		return tx.SetBalance(ctx, want)
	})
	if err != nil {
		return 0, fmt.Errorf("reconcile %s/%s: %w", epoch, metal, err)
	}
	return drift, nil
}

// ReconcileAll runs Reconcile over every pool, returning per-pool drift.
func (l *Ledger) ReconcileAll(ctx context.Context) (map[string]int64, error) {
	drifts := make(map[string]int64)
	for _, e := range pod.EpochsInOrder {
		for _, m := range pod.Metals {
			drift, err := l.Reconcile(ctx, e, m)
			if err != nil {
				if errors.Is(err, ErrPoolNotFound) {
					continue
				}
				return nil, err
			}
			if drift != 0 {
				drifts[fmt.Sprintf("%s/%s", e, m)] = drift
			}
		}
	}
	return drifts, nil
}

// PickEpochForMetal scans epochs in fixed order from startEpoch, first
// reconciling each, and returns the first whose pool clears the dust
// threshold and covers required, with sufficient=true. When no pool
// suffices it falls back to the richest pool with sufficient=false so
// diagnostic callers can report partial capacity.
func (l *Ledger) PickEpochForMetal(ctx context.Context, metal pod.Metal, required int64, startEpoch pod.Epoch) (pool pod.EpochMetalPool, sufficient bool, err error) {
	start := startEpoch.Index()
	if start < 0 {
		return pod.EpochMetalPool{}, false, fmt.Errorf("unknown start epoch %q", startEpoch)
	}

	var richest pod.EpochMetalPool
	found := false
	for _, e := range pod.EpochsInOrder[start:] {
		if _, err := l.Reconcile(ctx, e, metal); err != nil {
			if errors.Is(err, ErrPoolNotFound) {
				continue
			}
			return pod.EpochMetalPool{}, false, err
		}
		pool, err := l.store.Pool(ctx, e, metal)
		if err != nil {
			return pod.EpochMetalPool{}, false, fmt.Errorf("read pool %s/%s: %w", e, metal, err)
		}
		if pool.Balance > l.config.DustThreshold && pool.Balance >= required {
			return pool, true, nil
		}
		if !found || pool.Balance > richest.Balance {
			richest = pool
			found = true
		}
	}
	if !found {
		return pod.EpochMetalPool{}, false, fmt.Errorf("%w: no %s pools from %s", ErrPoolNotFound, metal, startEpoch)
	}
	return richest, false, nil
}

// Pools reads every pool row for status display.
func (l *Ledger) Pools(ctx context.Context) ([]pod.EpochMetalPool, error) {
	return l.store.Pools(ctx)
}

// Records reads the allocation audit trail.
func (l *Ledger) Records(ctx context.Context, filter RecordFilter) ([]pod.AllocationRecord, error) {
	return l.store.Records(ctx, filter)
}
