package cli

import (
	"context"
	"fmt"

	"github.com/podlabs/podmint/internal/epoch"
	"github.com/podlabs/podmint/internal/ledger"
	"github.com/spf13/cobra"
)

var epochCmd = &cobra.Command{
	Use:   "epoch",
	Short: "Epoch qualification and unlock state",
}

var epochStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show open epochs and unlock progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		store := ledger.NewPGStore(db)
		state, err := store.Tokenomics(ctx)
		if err != nil {
			return err
		}

		qualifier := epoch.NewQualifier(epoch.DefaultConfig())
		info := qualifier.OpenInfo(state)

		fmt.Printf("Total coherence density: %d\n", info.TotalCoherenceDensity)
		fmt.Printf("Priority epoch:          %s\n", info.Priority)
		fmt.Printf("Qualification threshold: %d\n", info.QualificationThreshold)
		fmt.Printf("Open epochs:\n")
		for _, e := range info.Open {
			fmt.Printf("  %s\n", e)
		}
		return nil
	},
}

func init() {
	epochCmd.AddCommand(epochStatusCmd)
}
