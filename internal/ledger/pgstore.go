package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podlabs/podmint/internal/pod"
)

// PGStore implements Store on PostgreSQL. WithPool takes a row-level lock
// (SELECT ... FOR UPDATE) inside a single transaction, so concurrent
// allocations against the same (epoch, metal) key serialize at the
// database.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a PGStore over a pgx pool.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// WithPool opens a transaction, locks the pool row, and runs fn. The
// transaction commits iff fn returns nil. Serialization failures and
// deadlocks are wrapped in ErrConflict so the ledger can retry.
func (s *PGStore) WithPool(ctx context.Context, epoch pod.Epoch, metal pod.Metal, fn func(tx PoolTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var pool pod.EpochMetalPool
	err = tx.QueryRow(ctx, `
		SELECT epoch, metal, balance, distribution_amount, updated_at
		FROM epoch_metal_pools
		WHERE epoch = $1 AND metal = $2
		FOR UPDATE
	`, epoch, metal).Scan(&pool.Epoch, &pool.Metal, &pool.Balance, &pool.DistributionAmount, &pool.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrPoolNotFound, epoch, metal)
	}
	if err != nil {
		return wrapConflict(fmt.Errorf("lock pool %s/%s: %w", epoch, metal, err))
	}

	if err := fn(&pgPoolTx{tx: tx, pool: pool}); err != nil {
		return wrapConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapConflict(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Pool reads one pool row without locking.
func (s *PGStore) Pool(ctx context.Context, epoch pod.Epoch, metal pod.Metal) (pod.EpochMetalPool, error) {
	var pool pod.EpochMetalPool
	err := s.db.QueryRow(ctx, `
		SELECT epoch, metal, balance, distribution_amount, updated_at
		FROM epoch_metal_pools
		WHERE epoch = $1 AND metal = $2
	`, epoch, metal).Scan(&pool.Epoch, &pool.Metal, &pool.Balance, &pool.DistributionAmount, &pool.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pod.EpochMetalPool{}, fmt.Errorf("%w: %s/%s", ErrPoolNotFound, epoch, metal)
	}
	if err != nil {
		return pod.EpochMetalPool{}, err
	}
	return pool, nil
}

// Pools reads every pool row in epoch/metal order.
func (s *PGStore) Pools(ctx context.Context) ([]pod.EpochMetalPool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT epoch, metal, balance, distribution_amount, updated_at
		FROM epoch_metal_pools
		ORDER BY epoch, metal
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []pod.EpochMetalPool
	for rows.Next() {
		var pool pod.EpochMetalPool
		if err := rows.Scan(&pool.Epoch, &pool.Metal, &pool.Balance, &pool.DistributionAmount, &pool.UpdatedAt); err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// Records reads the allocation audit trail, newest first.
func (s *PGStore) Records(ctx context.Context, filter RecordFilter) ([]pod.AllocationRecord, error) {
	query := `
		SELECT id, submission_hash, contributor, epoch, metal, reward,
		       epoch_balance_before, epoch_balance_after, created_at
		FROM allocation_records
		WHERE ($1 = '' OR submission_hash = $1)
		  AND ($2 = '' OR epoch = $2)
		  AND ($3 = '' OR metal = $3)
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, filter.SubmissionHash, string(filter.Epoch), string(filter.Metal))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []pod.AllocationRecord
	for rows.Next() {
		var r pod.AllocationRecord
		if err := rows.Scan(&r.ID, &r.SubmissionHash, &r.Contributor, &r.Epoch, &r.Metal,
			&r.Reward, &r.BalanceBefore, &r.BalanceAfter, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Tokenomics reads the single network activity row.
func (s *PGStore) Tokenomics(ctx context.Context) (pod.TokenomicsState, error) {
	var state pod.TokenomicsState
	err := s.db.QueryRow(ctx, `
		SELECT total_coherence_density, updated_at FROM tokenomics_state WHERE id = 1
	`).Scan(&state.TotalCoherenceDensity, &state.UpdatedAt)
	if err != nil {
		return pod.TokenomicsState{}, fmt.Errorf("read tokenomics state: %w", err)
	}
	return state, nil
}

// AddCoherenceDensity advances the network activity counter atomically.
func (s *PGStore) AddCoherenceDensity(ctx context.Context, delta int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE tokenomics_state
		SET total_coherence_density = total_coherence_density + $1, updated_at = now()
		WHERE id = 1
	`, delta)
	if err != nil {
		return fmt.Errorf("advance coherence density: %w", err)
	}
	return nil
}

// pgPoolTx is the locked pool view inside one transaction.
type pgPoolTx struct {
	tx   pgx.Tx
	pool pod.EpochMetalPool
}

func (t *pgPoolTx) Pool() pod.EpochMetalPool { return t.pool }

func (t *pgPoolTx) SumRewards(ctx context.Context) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(reward), 0) FROM allocation_records
		WHERE epoch = $1 AND metal = $2
	`, t.pool.Epoch, t.pool.Metal).Scan(&sum)
	return sum, err
}

func (t *pgPoolTx) FindRecord(ctx context.Context, submissionHash string, metal pod.Metal) (*pod.AllocationRecord, error) {
	var r pod.AllocationRecord
	err := t.tx.QueryRow(ctx, `
		SELECT id, submission_hash, contributor, epoch, metal, reward,
		       epoch_balance_before, epoch_balance_after, created_at
		FROM allocation_records
		WHERE submission_hash = $1 AND metal = $2
	`, submissionHash, metal).Scan(&r.ID, &r.SubmissionHash, &r.Contributor, &r.Epoch, &r.Metal,
		&r.Reward, &r.BalanceBefore, &r.BalanceAfter, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *pgPoolTx) SetBalance(ctx context.Context, balance int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE epoch_metal_pools SET balance = $1, updated_at = now()
		WHERE epoch = $2 AND metal = $3
	`, balance, t.pool.Epoch, t.pool.Metal)
	return err
}

func (t *pgPoolTx) AppendRecord(ctx context.Context, record pod.AllocationRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO allocation_records
		(id, submission_hash, contributor, epoch, metal, reward,
		 epoch_balance_before, epoch_balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, record.ID, record.SubmissionHash, record.Contributor, record.Epoch, record.Metal,
		record.Reward, record.BalanceBefore, record.BalanceAfter, record.CreatedAt)
	return err
}

// wrapConflict tags serialization failures and deadlocks as ErrConflict
// so callers can retry. Unique-key violations on the idempotency index
// also map to conflict: a racing allocate committed first and the retry
// will observe its record.
func wrapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
