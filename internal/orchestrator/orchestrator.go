package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/podlabs/podmint/internal/epoch"
	"github.com/podlabs/podmint/internal/gate"
	"github.com/podlabs/podmint/internal/ledger"
	"github.com/podlabs/podmint/internal/pod"
	"github.com/podlabs/podmint/internal/precision"
)

// AssayFunc computes per-metal weight shares for one evaluation. Shares
// should sum to at most 1; zero-weight metals are skipped.
type AssayFunc func(score pod.EvaluationScore) map[pod.Metal]float64

// DefaultAssay weights gold by alignment, silver by coherence, and copper
// by density, normalized over the three dimensions.
func DefaultAssay(score pod.EvaluationScore) map[pod.Metal]float64 {
	total := float64(score.Alignment + score.Coherence + score.Density)
	if total <= 0 {
		return map[pod.Metal]float64{}
	}
	return map[pod.Metal]float64{
		pod.MetalGold:   float64(score.Alignment) / total,
		pod.MetalSilver: float64(score.Coherence) / total,
		pod.MetalCopper: float64(score.Density) / total,
	}
}

// Emitter publishes allocation summaries for the downstream registration
// consumer. Emission is fire-and-forget; the core never blocks on it.
type Emitter interface {
	PushSummary(ctx context.Context, summary pod.AllocationSummary) (string, error)
}

// Config holds the orchestrator tunables.
type Config struct {
	// BaseReward is the full-score reward in base units, scaled down by
	// pod_score/10000 per contribution.
	BaseReward int64
}

// DefaultConfig returns the stock orchestration configuration.
func DefaultConfig() Config {
	return Config{BaseReward: 1000 * pod.TokenUnit}
}

// Orchestrator converts one finalized evaluation into zero or more
// ledger-recorded allocations: gates, precision, epoch qualification, then
// one independent allocate per positively-weighted metal.
type Orchestrator struct {
	gates     *gate.Engine
	bmp       precision.Config
	qualifier *epoch.Qualifier
	ledger    *ledger.Ledger
	store     ledger.Store
	assay     AssayFunc
	emitter   Emitter
	config    Config
}

// New wires the orchestrator. emitter may be nil when no registration
// consumer is attached.
func New(gates *gate.Engine, bmp precision.Config, qualifier *epoch.Qualifier, l *ledger.Ledger, store ledger.Store, assay AssayFunc, emitter Emitter, config Config) *Orchestrator {
	if assay == nil {
		assay = DefaultAssay
	}
	return &Orchestrator{
		gates:     gates,
		bmp:       bmp,
		qualifier: qualifier,
		ledger:    l,
		store:     store,
		assay:     assay,
		emitter:   emitter,
		config:    config,
	}
}

// Result reports one orchestration run. Rejections are data, not errors;
// the returned error is reserved for persistence failures.
type Result struct {
	Gate      pod.GateResult      `json:"gate"`
	Precision pod.PrecisionResult `json:"precision"`
	Qualified bool                `json:"qualified"`
	Rejection string              `json:"rejection,omitempty"`
	Epoch     pod.Epoch           `json:"epoch,omitempty"`
	Outcomes  []pod.MetalOutcome  `json:"outcomes,omitempty"`
}

// Evaluate runs gates and precision without touching the ledger. Pure;
// used by the evaluate command and as the first phase of Process.
func (o *Orchestrator) Evaluate(sub pod.Submission) (pod.GateResult, pod.PrecisionResult) {
	gateResult := o.gates.Evaluate(sub.Score, sub.Thalet, sub.BridgeSpec)
	penalty := gate.PenaltyInconsistency(gateResult.BridgeSpec, gateResult.HasBridgeSpec)
	return gateResult, precision.Derive(sub.Score.Coherence, penalty, o.bmp)
}

// Process runs the full pipeline for one finalized evaluation. Per-metal
// allocations are independent units of work: one metal failing does not
// roll back or block the others, and the result lists every outcome.
func (o *Orchestrator) Process(ctx context.Context, sub pod.Submission) (Result, error) {
	if err := sub.Score.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid evaluation: %w", err)
	}

	gateResult, precisionResult := o.Evaluate(sub)
	result := Result{Gate: gateResult, Precision: precisionResult}

	density := sub.Score.CoherenceDensity()
	if !o.qualifier.QualifiedForOpenEpoch(sub.Score.PodScore, density) {
		result.Rejection = fmt.Sprintf(
			"pod score %d / coherence density %d below open-epoch qualification bar",
			sub.Score.PodScore, density)
		return result, nil
	}
	result.Qualified = true
	result.Epoch = o.qualifier.Qualify(density)

	rewardTotal := o.config.BaseReward / 10000 * int64(sub.Score.PodScore)
	weights := o.assay(sub.Score)

	anyAllocated := false
	for _, metal := range pod.Metals {
		weight := weights[metal]
		if weight <= 0 {
			continue
		}
		amount := int64(float64(rewardTotal) * weight)
		if amount <= 0 {
			continue
		}

		outcome := o.allocateMetal(ctx, sub, result.Epoch, metal, amount)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Allocated && !outcome.Existing {
			anyAllocated = true
		}
	}

	if anyAllocated {
		if err := o.store.AddCoherenceDensity(ctx, int64(density)); err != nil {
			return result, fmt.Errorf("advance network density: %w", err)
		}
		o.emit(ctx, sub, result)
	}
	return result, nil
}

// allocateMetal picks the epoch pool for one metal and allocates from it.
// Typed ledger failures become per-metal outcomes.
func (o *Orchestrator) allocateMetal(ctx context.Context, sub pod.Submission, startEpoch pod.Epoch, metal pod.Metal, amount int64) pod.MetalOutcome {
	outcome := pod.MetalOutcome{Metal: metal, Reward: amount}

	pool, sufficient, err := o.ledger.PickEpochForMetal(ctx, metal, amount, startEpoch)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}
	if !sufficient {
		outcome.Err = fmt.Sprintf("%v: richest %s pool %s holds %d, need %d",
			ledger.ErrInsufficientBalance, metal, pool.Epoch, pool.Balance, amount)
		return outcome
	}

	allocated, err := o.ledger.Allocate(ctx, pool.Epoch, metal, amount, sub.Score.Contributor, sub.Score.SubmissionHash)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}
	outcome.Allocated = true
	outcome.Existing = allocated.Existing
	outcome.Record = &allocated.Record
	return outcome
}

// emit publishes the allocation summary. Failures are logged, never
// propagated: registration is downstream of the conservation boundary.
func (o *Orchestrator) emit(ctx context.Context, sub pod.Submission, result Result) {
	if o.emitter == nil {
		return
	}
	summary := pod.AllocationSummary{
		SubmissionHash: sub.Score.SubmissionHash,
		Contributor:    sub.Score.Contributor,
		Epoch:          result.Epoch,
		Tier:           result.Precision.Tier,
		Classification: result.Gate.Classification,
		Outcomes:       result.Outcomes,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := o.emitter.PushSummary(ctx, summary); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("emit allocation summary for %s: %v", sub.Score.SubmissionHash, err)
	}
}
