package cli

import (
	"context"
	"fmt"

	"github.com/podlabs/podmint/internal/db"
	"github.com/podlabs/podmint/internal/queue"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the podmint protocol state",
	Long:  "Initialize: PostgreSQL schema, genesis pool seed, Redis streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("Applied schema and genesis pool seed")

		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		q := queue.New(rdb)
		if err := q.EnsureStreams(ctx); err != nil {
			return fmt.Errorf("ensure streams: %w", err)
		}
		fmt.Println("Created Redis streams and consumer groups")
		return nil
	},
}
