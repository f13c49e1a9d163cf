package gate

import (
	"github.com/podlabs/podmint/internal/pod"
)

// Config holds the tunable gate thresholds and heuristics. The pattern
// lists are heuristics, not formal grammar; treat them as configuration.
type Config struct {
	// DeltaMin is the minimum ΔNovelty for Layer A to pass.
	DeltaMin float64
	// MinPredictionLen and MinFailureLen are the minimum character counts
	// for a differential prediction / failure condition to be committal.
	MinPredictionLen int
	MinFailureLen    int
	// HedgePatterns mark a prediction as tautological/non-committal.
	HedgePatterns []string
	// UnfalsifiablePatterns mark a failure condition as explicitly
	// unfalsifiable.
	UnfalsifiablePatterns []string
	// VagueTerms are qualifier words counted toward degeneracy.
	VagueTerms []string
	// VagueFreeCount is how many vague terms are tolerated before each
	// excess term adds VagueExcessPenalty.
	VagueFreeCount     int
	VagueExcessPenalty float64
	// MissingFloorPenalty applies when a bridge declares no floor
	// constraints.
	MissingFloorPenalty float64
	// ExceptionPatterns and ExceptionPenalty cover conditional-exception
	// language in the failure condition.
	ExceptionPatterns []string
	ExceptionPenalty  float64
	// BridgeDegeneracyLimit soft-fails T-B-04 when any single bridge's
	// degeneracy exceeds it.
	BridgeDegeneracyLimit float64
}

// DefaultConfig returns the stock gate thresholds.
func DefaultConfig() Config {
	return Config{
		DeltaMin:              0.1,
		MinPredictionLen:      10,
		MinFailureLen:         10,
		HedgePatterns:         []string{"may vary", "could change", "possibly"},
		UnfalsifiablePatterns: []string{"cannot be falsified", "unfalsifiable", "not falsifiable"},
		VagueTerms:            []string{"some", "many", "various", "several", "numerous", "often"},
		VagueFreeCount:        2,
		VagueExcessPenalty:    0.1,
		MissingFloorPenalty:   0.2,
		ExceptionPatterns:     []string{"unless", "except"},
		ExceptionPenalty:      0.3,
		BridgeDegeneracyLimit: 0.3,
	}
}

// Engine runs the two-layer gate protocol. All methods are pure and safe
// for concurrent use.
type Engine struct {
	config Config
}

// NewEngine creates a gate engine with the given configuration.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// LayerA computes ΔNovelty from redundancy overlap and folds in the
// upstream THALET verdict. Deterministic over its inputs.
func (e *Engine) LayerA(score pod.EvaluationScore, thalet pod.ThaletResult) pod.LayerAResult {
	// Computed as (100-overlap)/100 rather than 1-overlap/100 so the
	// boundary values land exactly on the threshold.
	deltaNovelty := (100 - score.RedundancyOverlapPercent) / 100

	result := pod.LayerAResult{
		DeltaNovelty:       deltaNovelty,
		DeltaNoveltyPasses: deltaNovelty >= e.config.DeltaMin,
		ThaletOverall:      thalet.Overall,
	}
	result.Passed = result.DeltaNoveltyPasses && thalet.Overall == pod.VerdictPassed
	return result
}

// Evaluate runs both layers and the combinator for one evaluation.
func (e *Engine) Evaluate(score pod.EvaluationScore, thalet pod.ThaletResult, spec *pod.BridgeSpec) pod.GateResult {
	layerA := e.LayerA(score, thalet)
	validation := e.ValidateBridgeSpec(spec)
	return Combine(layerA, validation, spec != nil && len(spec.Bridges) > 0)
}

// Combine derives the official/community classification from both layers.
// Official status is fail-closed: any hard failure among T-B-01..03, a
// missing BridgeSpec, or a Layer A rejection keeps the contribution
// community-eligible only. A soft-failed T-B-04 does not block.
func Combine(layerA pod.LayerAResult, validation pod.BridgeSpecValidation, hasSpec bool) pod.GateResult {
	result := pod.GateResult{
		LayerA:         layerA,
		BridgeSpec:     validation,
		HasBridgeSpec:  hasSpec,
		Classification: pod.ClassificationCommunity,
	}
	if hasSpec && layerA.Passed &&
		validation.TB01 == pod.VerdictPassed &&
		validation.TB02 == pod.VerdictPassed &&
		validation.TB03 == pod.VerdictPassed {
		result.Classification = pod.ClassificationOfficial
	}
	return result
}

// PenaltyInconsistency converts BridgeSpec quality into the precision
// module's inconsistency penalty. A missing spec forces the maximum
// penalty; a strong, non-degenerate spec drives it toward zero.
func PenaltyInconsistency(validation pod.BridgeSpecValidation, hasSpec bool) float64 {
	if !hasSpec {
		return 1.0
	}
	penalty := 1 - validation.TestabilityScore
	if penalty < 0 {
		return 0
	}
	if penalty > 1 {
		return 1
	}
	return penalty
}
