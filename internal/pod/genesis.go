package pod

import "time"

// TotalSupply is the protocol's fixed token supply in base units
// (100,000,000 tokens).
const TotalSupply int64 = 100_000_000 * TokenUnit

// Epoch shares of the total supply, in basis points.
var epochShareBps = map[Epoch]int64{
	EpochFounder:   4000,
	EpochPioneer:   3000,
	EpochCommunity: 2000,
	EpochEcosystem: 1000,
}

// Metal shares within each epoch's allocation, in basis points.
var metalShareBps = map[Metal]int64{
	MetalGold:   5000,
	MetalSilver: 3000,
	MetalCopper: 2000,
}

// GenesisPools returns the fixed per-(epoch, metal) distribution amounts
// set once at genesis. The migration seed mirrors these numbers; they are
// never changed afterwards.
func GenesisPools() []EpochMetalPool {
	now := time.Now().UTC()
	var pools []EpochMetalPool
	for _, e := range EpochsInOrder {
		epochAmount := TotalSupply / 10000 * epochShareBps[e]
		for _, m := range Metals {
			amount := epochAmount / 10000 * metalShareBps[m]
			pools = append(pools, EpochMetalPool{
				Epoch:              e,
				Metal:              m,
				Balance:            amount,
				DistributionAmount: amount,
				UpdatedAt:          now,
			})
		}
	}
	return pools
}
