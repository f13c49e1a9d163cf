package pod

import (
	"fmt"
	"strings"
	"time"
)

// TokenUnit is the number of base units in one token. All balances and
// rewards are stored in base units so arithmetic stays integral.
const TokenUnit int64 = 1_000_000

// Verdict is the outcome of a single gate check.
type Verdict string

const (
	VerdictPassed     Verdict = "passed"
	VerdictSoftFailed Verdict = "soft_failed"
	VerdictFailed     Verdict = "failed"
	VerdictNotChecked Verdict = "not_checked"
)

// Classification splits contributions into the two chambers: community
// (meaning/narrative, always reachable) and official (testability bar met).
type Classification string

const (
	ClassificationCommunity Classification = "community"
	ClassificationOfficial  Classification = "official"
)

// Tier is the discrete precision tier derived from n-hat.
type Tier string

const (
	TierCommunity Tier = "community"
	TierCopper    Tier = "copper"
	TierSilver    Tier = "silver"
	TierGold      Tier = "gold"
)

// Epoch is a named phase of the token distribution schedule. Epochs are a
// closed set, ordered founder first.
type Epoch string

const (
	EpochFounder   Epoch = "founder"
	EpochPioneer   Epoch = "pioneer"
	EpochCommunity Epoch = "community"
	EpochEcosystem Epoch = "ecosystem"
)

// EpochsInOrder lists all epochs in qualification/scan order.
var EpochsInOrder = []Epoch{EpochFounder, EpochPioneer, EpochCommunity, EpochEcosystem}

// ParseEpoch validates a free-form epoch name at the system boundary.
// Everything past the boundary works with the closed Epoch set.
func ParseEpoch(s string) (Epoch, error) {
	switch Epoch(strings.ToLower(strings.TrimSpace(s))) {
	case EpochFounder:
		return EpochFounder, nil
	case EpochPioneer:
		return EpochPioneer, nil
	case EpochCommunity:
		return EpochCommunity, nil
	case EpochEcosystem:
		return EpochEcosystem, nil
	}
	return "", fmt.Errorf("unknown epoch %q", s)
}

// Index returns the epoch's position in the fixed order, or -1.
func (e Epoch) Index() int {
	for i, epoch := range EpochsInOrder {
		if epoch == e {
			return i
		}
	}
	return -1
}

// Metal is a reward subdivision of each epoch's pool.
type Metal string

const (
	MetalGold   Metal = "gold"
	MetalSilver Metal = "silver"
	MetalCopper Metal = "copper"
)

// Metals lists all metals in display order.
var Metals = []Metal{MetalGold, MetalSilver, MetalCopper}

// ParseMetal validates a free-form metal name at the system boundary.
func ParseMetal(s string) (Metal, error) {
	switch Metal(strings.ToLower(strings.TrimSpace(s))) {
	case MetalGold:
		return MetalGold, nil
	case MetalSilver:
		return MetalSilver, nil
	case MetalCopper:
		return MetalCopper, nil
	}
	return "", fmt.Errorf("unknown metal %q", s)
}

// EvaluationScore is the immutable result of the upstream AI evaluation for
// one submission. Dimension scores are each in [0, 2500]; PodScore is their
// sum in [0, 10000].
type EvaluationScore struct {
	SubmissionHash           string  `json:"submission_hash" db:"submission_hash"`
	Contributor              string  `json:"contributor" db:"contributor"`
	Novelty                  int     `json:"novelty" db:"novelty"`
	Density                  int     `json:"density" db:"density"`
	Coherence                int     `json:"coherence" db:"coherence"`
	Alignment                int     `json:"alignment" db:"alignment"`
	PodScore                 int     `json:"pod_score" db:"pod_score"`
	RedundancyOverlapPercent float64 `json:"redundancy_overlap_percent" db:"redundancy_overlap_percent"`
}

// Validate checks dimension ranges and the pod score derivation.
func (s EvaluationScore) Validate() error {
	if s.SubmissionHash == "" {
		return fmt.Errorf("submission hash required")
	}
	for name, v := range map[string]int{
		"novelty": s.Novelty, "density": s.Density,
		"coherence": s.Coherence, "alignment": s.Alignment,
	} {
		if v < 0 || v > 2500 {
			return fmt.Errorf("%s score %d out of range [0, 2500]", name, v)
		}
	}
	if sum := s.Novelty + s.Density + s.Coherence + s.Alignment; s.PodScore != sum {
		return fmt.Errorf("pod score %d does not equal dimension sum %d", s.PodScore, sum)
	}
	if s.RedundancyOverlapPercent < 0 || s.RedundancyOverlapPercent > 100 {
		return fmt.Errorf("redundancy overlap %.2f out of range [0, 100]", s.RedundancyOverlapPercent)
	}
	return nil
}

// CoherenceDensity rescales the density dimension from [0, 2500] to the
// pod score scale [0, 10000] that the epoch thresholds are defined on.
func (s EvaluationScore) CoherenceDensity() int {
	return s.Density * 4
}

// Bridge translates one claim into testable terms: where it applies, what
// is measured, what it predicts, and what would falsify it.
type Bridge struct {
	Regime                 string   `json:"regime"`
	Observables            []string `json:"observables"`
	DifferentialPrediction string   `json:"differential_prediction"`
	FailureCondition       string   `json:"failure_condition"`
	FloorConstraints       []string `json:"floor_constraints,omitempty"`
}

// BridgeSpec is the contributor-supplied testability document, immutable
// once validated. A nil or empty spec fails Layer B closed.
type BridgeSpec struct {
	Bridges []Bridge `json:"bridges"`
}

// ThaletResult aggregates the upstream integrity/provenance/coherence
// check family feeding Layer A.
type ThaletResult struct {
	Overall Verdict            `json:"overall"`
	Checks  map[string]Verdict `json:"checks,omitempty"`
}

// LayerAResult is the novelty/coherence verdict for one evaluation.
type LayerAResult struct {
	DeltaNovelty       float64 `json:"delta_novelty"`
	DeltaNoveltyPasses bool    `json:"delta_novelty_passes"`
	ThaletOverall      Verdict `json:"thalet_overall"`
	Passed             bool    `json:"passed"`
}

// BridgeCheck is the per-bridge breakdown of one Layer B check.
type BridgeCheck struct {
	BridgeIndex int     `json:"bridge_index"`
	Check       string  `json:"check"`
	Verdict     Verdict `json:"verdict"`
	Reason      string  `json:"reason,omitempty"`
}

// BridgeSpecValidation is the Layer B result: three fail-closed checks,
// one soft degeneracy check, and the derived quality numbers.
type BridgeSpecValidation struct {
	TB01              Verdict       `json:"t_b_01"`
	TB02              Verdict       `json:"t_b_02"`
	TB03              Verdict       `json:"t_b_03"`
	TB04              Verdict       `json:"t_b_04"`
	DegeneracyPenalty float64       `json:"degeneracy_penalty"`
	TestabilityScore  float64       `json:"testability_score"`
	Overall           Verdict       `json:"overall"`
	Checks            []BridgeCheck `json:"checks,omitempty"`
}

// GateResult combines Layer A and Layer B into the final classification.
// Recomputed on demand; never persisted as authoritative.
type GateResult struct {
	LayerA         LayerAResult         `json:"layer_a"`
	BridgeSpec     BridgeSpecValidation `json:"bridge_spec"`
	HasBridgeSpec  bool                 `json:"has_bridge_spec"`
	Classification Classification       `json:"classification"`
}

// PrecisionResult is the BMP derivation: a continuous stable-digits index
// and its discrete tier.
type PrecisionResult struct {
	NHat        float64 `json:"n_hat"`
	BubbleClass string  `json:"bubble_class"`
	Tier        Tier    `json:"tier"`
}

// EpochMetalPool is the mutable balance row for one (epoch, metal) pair.
// Only the ledger writes it. Conservation: Balance equals
// DistributionAmount minus the sum of allocated rewards, and stays in
// [0, DistributionAmount].
type EpochMetalPool struct {
	Epoch              Epoch     `json:"epoch" db:"epoch"`
	Metal              Metal     `json:"metal" db:"metal"`
	Balance            int64     `json:"balance" db:"balance"`
	DistributionAmount int64     `json:"distribution_amount" db:"distribution_amount"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// AllocationRecord is the write-once audit entry for one (submission,
// metal) allocation. The trail is sufficient to reconstruct pool balances.
type AllocationRecord struct {
	ID             string    `json:"id" db:"id"`
	SubmissionHash string    `json:"submission_hash" db:"submission_hash"`
	Contributor    string    `json:"contributor" db:"contributor"`
	Epoch          Epoch     `json:"epoch" db:"epoch"`
	Metal          Metal     `json:"metal" db:"metal"`
	Reward         int64     `json:"reward" db:"reward"`
	BalanceBefore  int64     `json:"epoch_balance_before" db:"epoch_balance_before"`
	BalanceAfter   int64     `json:"epoch_balance_after" db:"epoch_balance_after"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// TokenomicsState is the explicit network-activity counter driving epoch
// unlocks. One row, passed by value into the epoch qualifier instead of
// living as ambient global state.
type TokenomicsState struct {
	TotalCoherenceDensity int64     `json:"total_coherence_density" db:"total_coherence_density"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// Submission is the finalized evaluation envelope the orchestrator
// consumes: the evaluator's score, the upstream THALET verdict, and the
// contributor's optional BridgeSpec.
type Submission struct {
	Score      EvaluationScore `json:"score"`
	Thalet     ThaletResult    `json:"thalet"`
	BridgeSpec *BridgeSpec     `json:"bridge_spec,omitempty"`
}

// MetalOutcome reports one metal's allocation attempt within an
// orchestration run.
type MetalOutcome struct {
	Metal     Metal             `json:"metal"`
	Reward    int64             `json:"reward"`
	Allocated bool              `json:"allocated"`
	Existing  bool              `json:"existing,omitempty"`
	Record    *AllocationRecord `json:"record,omitempty"`
	Err       string            `json:"error,omitempty"`
}

// AllocationSummary is emitted to the registration stream after an
// orchestration run commits at least one allocation.
type AllocationSummary struct {
	SubmissionHash string         `json:"submission_hash"`
	Contributor    string         `json:"contributor"`
	Epoch          Epoch          `json:"epoch"`
	Tier           Tier           `json:"tier"`
	Classification Classification `json:"classification"`
	Outcomes       []MetalOutcome `json:"outcomes"`
	CreatedAt      time.Time      `json:"created_at"`
}
