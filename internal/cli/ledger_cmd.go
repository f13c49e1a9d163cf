package cli

import (
	"context"
	"fmt"

	"github.com/podlabs/podmint/internal/ledger"
	"github.com/podlabs/podmint/internal/pod"
	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Allocation audit trail",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List allocation records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		submission, _ := cmd.Flags().GetString("submission")
		epochFlag, _ := cmd.Flags().GetString("epoch")
		metalFlag, _ := cmd.Flags().GetString("metal")

		filter := ledger.RecordFilter{SubmissionHash: submission}
		if epochFlag != "" {
			e, err := pod.ParseEpoch(epochFlag)
			if err != nil {
				return err
			}
			filter.Epoch = e
		}
		if metalFlag != "" {
			m, err := pod.ParseMetal(metalFlag)
			if err != nil {
				return err
			}
			filter.Metal = m
		}

		ctx := context.Background()
		db, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		_, l, _ := buildOrchestrator(db, nil)
		records, err := l.Records(ctx, filter)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("(no allocation records)")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %s/%s  reward=%d  balance %d -> %d\n",
				r.CreatedAt.Format("2006-01-02 15:04:05"), r.Epoch, r.Metal,
				r.Reward, r.BalanceBefore, r.BalanceAfter)
			fmt.Printf("  submission=%s contributor=%s record=%s\n",
				r.SubmissionHash, r.Contributor, r.ID)
		}
		return nil
	},
}

func init() {
	ledgerListCmd.Flags().String("submission", "", "filter by submission hash")
	ledgerListCmd.Flags().String("epoch", "", "filter by epoch")
	ledgerListCmd.Flags().String("metal", "", "filter by metal")
	ledgerCmd.AddCommand(ledgerListCmd)
}
