package precision

import (
	"fmt"
	"math"

	"github.com/podlabs/podmint/internal/pod"
)

// EpsilonMin is the floor on residual uncertainty, capping n-hat at 2 by
// default. Exposed through Config for tuning.
const EpsilonMin = 0.01

// NHatMax bounds the stable-digits index.
const NHatMax = 16

// Tier thresholds on n-hat.
const (
	copperThreshold = 3
	silverThreshold = 6
	goldThreshold   = 10
)

// Config holds the BMP tunables.
type Config struct {
	EpsilonMin float64
}

// DefaultConfig returns the stock BMP configuration.
func DefaultConfig() Config {
	return Config{EpsilonMin: EpsilonMin}
}

// Derive maps a coherence score and an inconsistency penalty to the
// continuous precision index n-hat and its discrete tier. Pure and
// deterministic; n-hat is monotonically non-increasing in the penalty.
func Derive(coherence int, penaltyInconsistency float64, config Config) pod.PrecisionResult {
	c := float64(coherence) / 2500
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}

	epsilon := 1 - c + penaltyInconsistency
	if epsilon < config.EpsilonMin {
		epsilon = config.EpsilonMin
	}

	nHat := -math.Log10(epsilon)
	if nHat < 0 {
		nHat = 0
	}
	if nHat > NHatMax {
		nHat = NHatMax
	}

	return pod.PrecisionResult{
		NHat:        nHat,
		BubbleClass: fmt.Sprintf("B%.1f", nHat),
		Tier:        TierFor(nHat),
	}
}

// TierFor maps n-hat to its discrete tier using the fixed 3/6/10
// boundaries.
func TierFor(nHat float64) pod.Tier {
	switch {
	case nHat >= goldThreshold:
		return pod.TierGold
	case nHat >= silverThreshold:
		return pod.TierSilver
	case nHat >= copperThreshold:
		return pod.TierCopper
	default:
		return pod.TierCommunity
	}
}
