package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/podlabs/podmint/internal/orchestrator"
	"github.com/podlabs/podmint/internal/queue"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume finalized evaluations from Redis and allocate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		q := queue.New(rdb)
		if err := q.EnsureStreams(ctx); err != nil {
			return err
		}

		o, _, _ := buildOrchestrator(db, q)

		fmt.Printf("Worker running with %d consumers. Press Ctrl+C to stop.\n", cfg.Workers)
		g, ctx := errgroup.WithContext(ctx)
		for i := 0; i < cfg.Workers; i++ {
			consumer := fmt.Sprintf("allocator_%d", i+1)
			g.Go(func() error {
				return consume(ctx, q, o, consumer)
			})
		}
		if err := g.Wait(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// consume processes intake messages until the context ends. Rejections
// are logged and acked; only persistence failures stop the loop.
func consume(ctx context.Context, q *queue.Queue, o *orchestrator.Orchestrator, consumer string) error {
	for {
		sub, msgID, err := q.ReadEvaluation(ctx, consumer)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("%s: read error: %v", consumer, err)
			if msgID != "" {
				q.AckEvaluation(ctx, msgID)
			}
			continue
		}

		result, err := o.Process(ctx, *sub)
		if err != nil {
			log.Printf("%s: process %s: %v", consumer, sub.Score.SubmissionHash, err)
			continue
		}

		if !result.Qualified {
			log.Printf("%s: %s rejected: %s", consumer, sub.Score.SubmissionHash, result.Rejection)
		} else {
			allocated := 0
			for _, outcome := range result.Outcomes {
				if outcome.Allocated {
					allocated++
				}
			}
			log.Printf("%s: %s epoch=%s tier=%s metals=%d/%d",
				consumer, sub.Score.SubmissionHash, result.Epoch,
				result.Precision.Tier, allocated, len(result.Outcomes))
		}
		q.AckEvaluation(ctx, msgID)
	}
}
