package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/podlabs/podmint/internal/epoch"
	"github.com/podlabs/podmint/internal/gate"
	"github.com/podlabs/podmint/internal/pod"
	"github.com/podlabs/podmint/internal/precision"
	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <submission.json>",
	Short: "Run gates, precision, and epoch qualification without allocating",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := readSubmission(args[0])
		if err != nil {
			return err
		}
		if err := sub.Score.Validate(); err != nil {
			return fmt.Errorf("invalid evaluation: %w", err)
		}

		engine := gate.NewEngine(gateConfig())
		gateResult := engine.Evaluate(sub.Score, sub.Thalet, sub.BridgeSpec)
		penalty := gate.PenaltyInconsistency(gateResult.BridgeSpec, gateResult.HasBridgeSpec)
		precisionResult := precision.Derive(sub.Score.Coherence, penalty, precision.DefaultConfig())
		qualifier := epoch.NewQualifier(epoch.DefaultConfig())

		printGateResult(gateResult)
		fmt.Printf("Precision:\n")
		fmt.Printf("  n_hat:        %.3f\n", precisionResult.NHat)
		fmt.Printf("  bubble class: %s\n", precisionResult.BubbleClass)
		fmt.Printf("  tier:         %s\n", precisionResult.Tier)

		density := sub.Score.CoherenceDensity()
		fmt.Printf("Epoch:\n")
		fmt.Printf("  qualifies for: %s\n", qualifier.Qualify(density))
		if qualifier.QualifiedForOpenEpoch(sub.Score.PodScore, density) {
			fmt.Printf("  open-epoch bar: met\n")
		} else {
			fmt.Printf("  open-epoch bar: NOT met (pod score %d, coherence density %d)\n",
				sub.Score.PodScore, density)
		}
		return nil
	},
}

func readSubmission(path string) (*pod.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read submission file: %w", err)
	}
	var sub pod.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("parse submission file: %w", err)
	}
	return &sub, nil
}

func printGateResult(result pod.GateResult) {
	fmt.Printf("Gate Layer A:\n")
	fmt.Printf("  delta novelty: %.3f (passes: %v)\n", result.LayerA.DeltaNovelty, result.LayerA.DeltaNoveltyPasses)
	fmt.Printf("  thalet:        %s\n", result.LayerA.ThaletOverall)
	fmt.Printf("  passed:        %v\n", result.LayerA.Passed)

	fmt.Printf("Gate Layer B:\n")
	v := result.BridgeSpec
	fmt.Printf("  T-B-01: %s  T-B-02: %s  T-B-03: %s  T-B-04: %s\n", v.TB01, v.TB02, v.TB03, v.TB04)
	fmt.Printf("  degeneracy:  %.2f\n", v.DegeneracyPenalty)
	fmt.Printf("  testability: %.2f\n", v.TestabilityScore)
	fmt.Printf("  overall:     %s\n", v.Overall)
	for _, check := range v.Checks {
		fmt.Printf("    bridge %d %s: %s (%s)\n", check.BridgeIndex, check.Check, check.Verdict, check.Reason)
	}

	fmt.Printf("Classification: %s\n", result.Classification)
}
