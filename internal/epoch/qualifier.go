package epoch

import (
	"github.com/podlabs/podmint/internal/pod"
)

// Config fixes the per-epoch qualification thresholds and the cumulative
// network-density levels at which later epochs unlock. Unlock levels are
// configuration rather than constants so founder-era-only deployments can
// push them out of reach.
type Config struct {
	DensityThresholds map[pod.Epoch]int
	UnlockLevels      map[pod.Epoch]int64
	// OpenEpochMinimum is the bar both density and pod score must meet
	// for a contribution to qualify at all during the founder era.
	OpenEpochMinimum int
}

// DefaultConfig returns the genesis thresholds.
func DefaultConfig() Config {
	return Config{
		DensityThresholds: map[pod.Epoch]int{
			pod.EpochFounder:   8000,
			pod.EpochPioneer:   6000,
			pod.EpochCommunity: 4000,
			pod.EpochEcosystem: 0,
		},
		UnlockLevels: map[pod.Epoch]int64{
			pod.EpochPioneer:   1_000_000,
			pod.EpochCommunity: 2_000_000,
			pod.EpochEcosystem: 3_000_000,
		},
		OpenEpochMinimum: 8000,
	}
}

// Qualifier answers which epoch a score belongs to and which epochs are
// open. The scoring methods are pure; OpenInfo reads the caller-supplied
// tokenomics snapshot.
type Qualifier struct {
	config Config
}

// NewQualifier creates a qualifier with the given thresholds.
func NewQualifier(config Config) *Qualifier {
	return &Qualifier{config: config}
}

// Qualify returns the highest-priority epoch whose density threshold the
// score meets, evaluated founder first.
func (q *Qualifier) Qualify(density int) pod.Epoch {
	for _, e := range pod.EpochsInOrder {
		if density >= q.config.DensityThresholds[e] {
			return e
		}
	}
	return pod.EpochEcosystem
}

// OpenInfo describes the currently open epochs given cumulative network
// activity. Founder is always open; later epochs open once the running
// coherence-density total crosses their unlock level.
type OpenInfo struct {
	Open []pod.Epoch `json:"open"`
	// Priority is the earliest open epoch; its density threshold is the
	// qualification bar applied to incoming contributions.
	Priority               pod.Epoch `json:"priority"`
	QualificationThreshold int       `json:"qualification_threshold"`
	TotalCoherenceDensity  int64     `json:"total_coherence_density"`
}

// OpenInfo computes the open-epoch view from a tokenomics snapshot. The
// snapshot is passed in by the caller; stale reads are acceptable.
func (q *Qualifier) OpenInfo(state pod.TokenomicsState) OpenInfo {
	info := OpenInfo{
		Open:                  []pod.Epoch{pod.EpochFounder},
		TotalCoherenceDensity: state.TotalCoherenceDensity,
	}
	for _, e := range pod.EpochsInOrder[1:] {
		if state.TotalCoherenceDensity >= q.config.UnlockLevels[e] {
			info.Open = append(info.Open, e)
		}
	}
	info.Priority = info.Open[0]
	info.QualificationThreshold = q.config.DensityThresholds[info.Priority]
	return info
}

// QualifiedForOpenEpoch requires both density and pod score to clear the
// open-epoch minimum. Either failing disqualifies the contribution
// outright; there is no silent downgrade to a later epoch.
func (q *Qualifier) QualifiedForOpenEpoch(podScore, density int) bool {
	return density >= q.config.OpenEpochMinimum && podScore >= q.config.OpenEpochMinimum
}
