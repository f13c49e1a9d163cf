package cli

import (
	"context"
	"fmt"

	"github.com/podlabs/podmint/internal/pod"
	"github.com/spf13/cobra"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Epoch metal pool operations",
}

var poolStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pool balances against genesis amounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		_, l, _ := buildOrchestrator(db, nil)
		pools, err := l.Pools(ctx)
		if err != nil {
			return fmt.Errorf("read pools: %w", err)
		}

		fmt.Printf("%-10s %-7s %20s %20s\n", "EPOCH", "METAL", "BALANCE", "GENESIS")
		for _, p := range pools {
			fmt.Printf("%-10s %-7s %20d %20d\n", p.Epoch, p.Metal, p.Balance, p.DistributionAmount)
		}
		return nil
	},
}

var poolReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute balances from the audit trail and repair drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		epochFlag, _ := cmd.Flags().GetString("epoch")
		metalFlag, _ := cmd.Flags().GetString("metal")

		ctx := context.Background()
		db, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		_, l, _ := buildOrchestrator(db, nil)

		if epochFlag != "" && metalFlag != "" {
			e, err := pod.ParseEpoch(epochFlag)
			if err != nil {
				return err
			}
			m, err := pod.ParseMetal(metalFlag)
			if err != nil {
				return err
			}
			drift, err := l.Reconcile(ctx, e, m)
			if err != nil {
				return err
			}
			if drift == 0 {
				fmt.Printf("%s/%s: no drift\n", e, m)
			} else {
				fmt.Printf("%s/%s: repaired drift of %d units\n", e, m, drift)
			}
			return nil
		}

		drifts, err := l.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		if len(drifts) == 0 {
			fmt.Println("All pools consistent with the audit trail")
			return nil
		}
		for key, drift := range drifts {
			fmt.Printf("%s: repaired drift of %d units\n", key, drift)
		}
		return nil
	},
}

func init() {
	poolReconcileCmd.Flags().String("epoch", "", "reconcile a single epoch (requires --metal)")
	poolReconcileCmd.Flags().String("metal", "", "reconcile a single metal (requires --epoch)")
	poolCmd.AddCommand(poolStatusCmd)
	poolCmd.AddCommand(poolReconcileCmd)
}
