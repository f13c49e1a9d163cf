package cli

import (
	"context"
	"fmt"

	"github.com/podlabs/podmint/internal/queue"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Queue management",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending evaluations and emitted allocations in Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		ctx := context.Background()
		q := queue.New(rdb)

		evaluations, allocations, err := q.Status(ctx)
		if err != nil {
			return fmt.Errorf("queue status: %w", err)
		}

		fmt.Printf("Queue Status:\n")
		fmt.Printf("  pod_evaluations: %d pending\n", evaluations)
		fmt.Printf("  pod_allocations: %d emitted\n", allocations)
		return nil
	},
}

var queuePushCmd = &cobra.Command{
	Use:   "push <submission.json>",
	Short: "Push a finalized evaluation onto the intake stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := readSubmission(args[0])
		if err != nil {
			return err
		}

		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		q := queue.New(rdb)
		ctx := context.Background()
		if err := q.EnsureStreams(ctx); err != nil {
			return err
		}
		msgID, err := q.PushEvaluation(ctx, *sub)
		if err != nil {
			return err
		}
		fmt.Printf("Pushed %s as %s\n", sub.Score.SubmissionHash, msgID)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queuePushCmd)
}
