package cli

import (
	"context"
	"fmt"

	"github.com/podlabs/podmint/internal/queue"
	"github.com/spf13/cobra"
)

var allocateCmd = &cobra.Command{
	Use:   "allocate <submission.json>",
	Short: "Run the full pipeline for one finalized evaluation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := readSubmission(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		pool, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		o, _, _ := buildOrchestrator(pool, queue.New(rdb))
		result, err := o.Process(ctx, *sub)
		if err != nil {
			return fmt.Errorf("process %s: %w", sub.Score.SubmissionHash, err)
		}

		printGateResult(result.Gate)
		fmt.Printf("Tier: %s (%s)\n", result.Precision.Tier, result.Precision.BubbleClass)
		if !result.Qualified {
			fmt.Printf("Rejected: %s\n", result.Rejection)
			return nil
		}
		fmt.Printf("Epoch: %s\n", result.Epoch)
		for _, outcome := range result.Outcomes {
			switch {
			case outcome.Allocated && outcome.Existing:
				fmt.Printf("  %-6s %d units (already allocated, record %s)\n",
					outcome.Metal, outcome.Record.Reward, outcome.Record.ID)
			case outcome.Allocated:
				fmt.Printf("  %-6s %d units (balance %d -> %d)\n",
					outcome.Metal, outcome.Reward, outcome.Record.BalanceBefore, outcome.Record.BalanceAfter)
			default:
				fmt.Printf("  %-6s FAILED: %s\n", outcome.Metal, outcome.Err)
			}
		}
		return nil
	},
}
