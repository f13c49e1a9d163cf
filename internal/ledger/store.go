package ledger

import (
	"context"

	"github.com/podlabs/podmint/internal/pod"
)

// Store is the persistence boundary for pools and allocation records. The
// ledger is the sole writer; upstream components only read pool state.
type Store interface {
	// WithPool runs fn while holding an exclusive lock on the (epoch,
	// metal) pool row. Mutations made through the transaction become
	// visible iff fn returns nil. Implementations must guarantee that no
	// concurrent WithPool call on the same key observes a stale balance.
	WithPool(ctx context.Context, epoch pod.Epoch, metal pod.Metal, fn func(tx PoolTx) error) error

	// Pool reads one pool row without locking.
	Pool(ctx context.Context, epoch pod.Epoch, metal pod.Metal) (pod.EpochMetalPool, error)

	// Pools reads every pool row.
	Pools(ctx context.Context) ([]pod.EpochMetalPool, error)

	// Records reads allocation records matching the filter, newest first.
	Records(ctx context.Context, filter RecordFilter) ([]pod.AllocationRecord, error)

	// Tokenomics reads the network activity counter. Stale snapshots are
	// acceptable to callers.
	Tokenomics(ctx context.Context) (pod.TokenomicsState, error)

	// AddCoherenceDensity advances the network activity counter.
	AddCoherenceDensity(ctx context.Context, delta int64) error
}

// PoolTx is the locked view of one pool row inside WithPool.
type PoolTx interface {
	// Pool returns the row as read under the lock.
	Pool() pod.EpochMetalPool

	// SumRewards totals the rewards recorded against this pool.
	SumRewards(ctx context.Context) (int64, error)

	// FindRecord looks up an existing allocation by idempotency key.
	FindRecord(ctx context.Context, submissionHash string, metal pod.Metal) (*pod.AllocationRecord, error)

	// SetBalance stages a new balance for the locked row.
	SetBalance(ctx context.Context, balance int64) error

	// AppendRecord stages a write-once allocation record.
	AppendRecord(ctx context.Context, record pod.AllocationRecord) error
}

// RecordFilter narrows a Records query. Zero values match everything.
type RecordFilter struct {
	SubmissionHash string
	Epoch          pod.Epoch
	Metal          pod.Metal
}
