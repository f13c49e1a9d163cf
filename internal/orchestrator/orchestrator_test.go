package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/podlabs/podmint/internal/epoch"
	"github.com/podlabs/podmint/internal/gate"
	"github.com/podlabs/podmint/internal/ledger"
	"github.com/podlabs/podmint/internal/pod"
	"github.com/podlabs/podmint/internal/precision"
)

type captureEmitter struct {
	summaries []pod.AllocationSummary
	fail      bool
}

func (e *captureEmitter) PushSummary(ctx context.Context, summary pod.AllocationSummary) (string, error) {
	if e.fail {
		return "", errors.New("stream unavailable")
	}
	e.summaries = append(e.summaries, summary)
	return fmt.Sprintf("msg-%d", len(e.summaries)), nil
}

func testPool(e pod.Epoch, m pod.Metal, amount int64) pod.EpochMetalPool {
	return pod.EpochMetalPool{
		Epoch:              e,
		Metal:              m,
		Balance:            amount,
		DistributionAmount: amount,
		UpdatedAt:          time.Now().UTC(),
	}
}

func founderPools(amount int64) []pod.EpochMetalPool {
	var pools []pod.EpochMetalPool
	for _, m := range pod.Metals {
		pools = append(pools, testPool(pod.EpochFounder, m, amount))
	}
	return pools
}

func testOrchestrator(pools []pod.EpochMetalPool, emitter Emitter) (*Orchestrator, *ledger.MemStore) {
	store := ledger.NewMemStore(pools)
	l := ledger.New(store, ledger.Config{DustThreshold: 10, MaxAttempts: 3, RetryBackoff: time.Millisecond})
	o := New(
		gate.NewEngine(gate.DefaultConfig()),
		precision.DefaultConfig(),
		epoch.NewQualifier(epoch.DefaultConfig()),
		l, store, nil, emitter,
		Config{BaseReward: 10000},
	)
	return o, store
}

// qualifiedSubmission clears both open-epoch bars: pod score 9000 and
// coherence density 2100*4 = 8400.
func qualifiedSubmission() pod.Submission {
	return pod.Submission{
		Score: pod.EvaluationScore{
			SubmissionHash: "hash1",
			Contributor:    "alice",
			Novelty:        2200,
			Density:        2100,
			Coherence:      2300,
			Alignment:      2400,
			PodScore:       9000,
		},
		Thalet: pod.ThaletResult{Overall: pod.VerdictPassed},
		BridgeSpec: &pod.BridgeSpec{Bridges: []pod.Bridge{{
			Regime:                 "low-temperature plasma",
			Observables:            []string{"emission spectrum"},
			DifferentialPrediction: "peak shifts at least 3nm toward blue under the stated field",
			FailureCondition:       "no measurable shift after 100 trials falsifies the claim",
			FloorConstraints:       []string{"field strength >= 2T"},
		}}},
	}
}

func TestDefaultAssay(t *testing.T) {
	shares := DefaultAssay(pod.EvaluationScore{Alignment: 2400, Coherence: 2300, Density: 2100})

	var sum float64
	for _, share := range shares {
		sum += share
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("shares sum to %v, want 1", sum)
	}
	if shares[pod.MetalGold] <= shares[pod.MetalSilver] || shares[pod.MetalSilver] <= shares[pod.MetalCopper] {
		t.Errorf("expected gold > silver > copper for these dimensions, got %v", shares)
	}

	if empty := DefaultAssay(pod.EvaluationScore{}); len(empty) != 0 {
		t.Errorf("zero dimensions should yield no shares, got %v", empty)
	}
}

func TestProcessAllocatesAllMetals(t *testing.T) {
	emitter := &captureEmitter{}
	o, store := testOrchestrator(founderPools(1_000_000), emitter)
	ctx := context.Background()

	result, err := o.Process(ctx, qualifiedSubmission())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if !result.Qualified || result.Rejection != "" {
		t.Fatalf("expected qualified result, got rejection %q", result.Rejection)
	}
	if result.Epoch != pod.EpochFounder {
		t.Errorf("epoch = %s, want founder", result.Epoch)
	}
	if result.Gate.Classification != pod.ClassificationOfficial {
		t.Errorf("classification = %s, want official", result.Gate.Classification)
	}

	if len(result.Outcomes) != 3 {
		t.Fatalf("%d outcomes, want 3", len(result.Outcomes))
	}
	var totalReward int64
	for _, outcome := range result.Outcomes {
		if !outcome.Allocated || outcome.Existing {
			t.Errorf("%s: allocated=%v existing=%v, want fresh allocation", outcome.Metal, outcome.Allocated, outcome.Existing)
		}
		if outcome.Record == nil || outcome.Record.Epoch != pod.EpochFounder {
			t.Errorf("%s: record missing or wrong epoch", outcome.Metal)
		}
		totalReward += outcome.Reward
	}
	// Reward total is base 10000 scaled by pod_score/10000, split by assay.
	if totalReward <= 0 || totalReward > 9000 {
		t.Errorf("total reward = %d, want in (0, 9000]", totalReward)
	}

	for _, outcome := range result.Outcomes {
		pool, err := store.Pool(ctx, pod.EpochFounder, outcome.Metal)
		if err != nil {
			t.Fatal(err)
		}
		if pool.Balance != pool.DistributionAmount-outcome.Reward {
			t.Errorf("%s pool balance %d, want %d", outcome.Metal, pool.Balance, pool.DistributionAmount-outcome.Reward)
		}
	}

	state, _ := store.Tokenomics(ctx)
	if state.TotalCoherenceDensity != 8400 {
		t.Errorf("network density = %d, want 8400", state.TotalCoherenceDensity)
	}

	if len(emitter.summaries) != 1 {
		t.Fatalf("%d summaries emitted, want 1", len(emitter.summaries))
	}
	summary := emitter.summaries[0]
	if summary.SubmissionHash != "hash1" || summary.Contributor != "alice" {
		t.Errorf("summary identity mismatch: %+v", summary)
	}
	if len(summary.Outcomes) != 3 {
		t.Errorf("summary has %d outcomes, want 3", len(summary.Outcomes))
	}
}

func TestProcessRejectsBelowQualificationBar(t *testing.T) {
	emitter := &captureEmitter{}
	o, store := testOrchestrator(founderPools(1_000_000), emitter)
	ctx := context.Background()

	sub := qualifiedSubmission()
	sub.Score.Novelty = 1000
	sub.Score.Density = 1000
	sub.Score.Coherence = 1000
	sub.Score.Alignment = 1000
	sub.Score.PodScore = 4000

	result, err := o.Process(ctx, sub)
	if err != nil {
		t.Fatalf("rejection must be data, not an error: %v", err)
	}
	if result.Qualified {
		t.Error("result should not be qualified")
	}
	if result.Rejection == "" {
		t.Error("rejection reason missing")
	}
	if len(result.Outcomes) != 0 {
		t.Errorf("%d outcomes on rejection, want 0", len(result.Outcomes))
	}

	records, _ := store.Records(ctx, ledger.RecordFilter{})
	if len(records) != 0 {
		t.Errorf("%d records written on rejection, want 0", len(records))
	}
	state, _ := store.Tokenomics(ctx)
	if state.TotalCoherenceDensity != 0 {
		t.Errorf("density advanced on rejection: %d", state.TotalCoherenceDensity)
	}
	if len(emitter.summaries) != 0 {
		t.Errorf("summary emitted on rejection")
	}
}

func TestProcessPartialFailureIsIndependent(t *testing.T) {
	// Copper has only a dust-level pool; gold and silver must still
	// commit, with the copper failure reported in its outcome.
	pools := []pod.EpochMetalPool{
		testPool(pod.EpochFounder, pod.MetalGold, 1_000_000),
		testPool(pod.EpochFounder, pod.MetalSilver, 1_000_000),
		testPool(pod.EpochFounder, pod.MetalCopper, 5),
	}
	emitter := &captureEmitter{}
	o, store := testOrchestrator(pools, emitter)
	ctx := context.Background()

	result, err := o.Process(ctx, qualifiedSubmission())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	byMetal := make(map[pod.Metal]pod.MetalOutcome)
	for _, outcome := range result.Outcomes {
		byMetal[outcome.Metal] = outcome
	}
	if !byMetal[pod.MetalGold].Allocated || !byMetal[pod.MetalSilver].Allocated {
		t.Error("gold and silver should allocate despite the copper failure")
	}
	copper := byMetal[pod.MetalCopper]
	if copper.Allocated {
		t.Error("copper should not allocate from a dust pool")
	}
	if !strings.Contains(copper.Err, "insufficient") {
		t.Errorf("copper error = %q, want insufficient balance", copper.Err)
	}

	// The successes still advance the network and emit.
	state, _ := store.Tokenomics(ctx)
	if state.TotalCoherenceDensity != 8400 {
		t.Errorf("density = %d, want 8400", state.TotalCoherenceDensity)
	}
	if len(emitter.summaries) != 1 {
		t.Errorf("%d summaries, want 1", len(emitter.summaries))
	}
}

func TestProcessSpillsToNextEpoch(t *testing.T) {
	// The founder gold pool is exhausted below the dust threshold; gold
	// allocates from pioneer while the other metals stay in founder.
	pools := []pod.EpochMetalPool{
		testPool(pod.EpochFounder, pod.MetalGold, 5),
		testPool(pod.EpochPioneer, pod.MetalGold, 1_000_000),
		testPool(pod.EpochFounder, pod.MetalSilver, 1_000_000),
		testPool(pod.EpochFounder, pod.MetalCopper, 1_000_000),
	}
	o, _ := testOrchestrator(pools, nil)

	result, err := o.Process(context.Background(), qualifiedSubmission())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	for _, outcome := range result.Outcomes {
		if !outcome.Allocated {
			t.Fatalf("%s: not allocated: %s", outcome.Metal, outcome.Err)
		}
		wantEpoch := pod.EpochFounder
		if outcome.Metal == pod.MetalGold {
			wantEpoch = pod.EpochPioneer
		}
		if outcome.Record.Epoch != wantEpoch {
			t.Errorf("%s allocated from %s, want %s", outcome.Metal, outcome.Record.Epoch, wantEpoch)
		}
	}
}

func TestProcessReprocessIsIdempotent(t *testing.T) {
	emitter := &captureEmitter{}
	o, store := testOrchestrator(founderPools(1_000_000), emitter)
	ctx := context.Background()

	first, err := o.Process(ctx, qualifiedSubmission())
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Process(ctx, qualifiedSubmission())
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}

	for i, outcome := range second.Outcomes {
		if !outcome.Existing {
			t.Errorf("%s: reprocess outcome not marked existing", outcome.Metal)
		}
		if outcome.Record.ID != first.Outcomes[i].Record.ID {
			t.Errorf("%s: reprocess returned a different record", outcome.Metal)
		}
	}

	records, _ := store.Records(ctx, ledger.RecordFilter{})
	if len(records) != 3 {
		t.Errorf("%d records after reprocess, want 3", len(records))
	}
	state, _ := store.Tokenomics(ctx)
	if state.TotalCoherenceDensity != 8400 {
		t.Errorf("density double-counted on reprocess: %d", state.TotalCoherenceDensity)
	}
	if len(emitter.summaries) != 1 {
		t.Errorf("%d summaries after reprocess, want 1", len(emitter.summaries))
	}
}

func TestProcessRejectsInvalidScore(t *testing.T) {
	o, _ := testOrchestrator(founderPools(1_000_000), nil)

	sub := qualifiedSubmission()
	sub.Score.PodScore = 9999 // not the dimension sum
	if _, err := o.Process(context.Background(), sub); err == nil {
		t.Error("inconsistent pod score should be an error")
	}
}

func TestProcessEmitterFailureDoesNotBlock(t *testing.T) {
	o, store := testOrchestrator(founderPools(1_000_000), &captureEmitter{fail: true})
	ctx := context.Background()

	result, err := o.Process(ctx, qualifiedSubmission())
	if err != nil {
		t.Fatalf("emitter failure must not fail the run: %v", err)
	}
	for _, outcome := range result.Outcomes {
		if !outcome.Allocated {
			t.Errorf("%s: allocation lost to emitter failure", outcome.Metal)
		}
	}
	records, _ := store.Records(ctx, ledger.RecordFilter{})
	if len(records) != 3 {
		t.Errorf("%d records, want 3", len(records))
	}
}
