package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/predictdesk/engine/internal/positions"
)

var redeemYes bool

// redeemCmd represents the redeem command
var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Redeem winning positions in resolved markets",
	Long: `Finds positions in resolved markets and converts the winning shares
back to collateral through the relayer. Each redemption is tracked
until the ledger reflects it.

Example:
  go run ./cmd/predictdesk redeem
  go run ./cmd/predictdesk redeem --yes`,
	RunE: runRedeem,
}

func init() {
	rootCmd.AddCommand(redeemCmd)

	redeemCmd.Flags().BoolVarP(&redeemYes, "yes", "y", false, "skip confirmation prompt")
}

func runRedeem(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.snapshots.Snapshot(ctx)
	if err != nil {
		return err
	}

	claimable := positions.Redeemable(snap.Positions)
	if len(claimable) == 0 {
		fmt.Println("Nothing to redeem")
		return nil
	}

	total := 0.0
	for _, p := range claimable {
		fmt.Printf("  %-40s %-8s %10.2f shares\n", p.Title, p.Outcome, p.Size)
		total += p.Size
	}
	fmt.Printf("Redeeming %d position(s), %.2f shares total\n", len(claimable), total)

	if !redeemYes && !confirm("Proceed?") {
		fmt.Println("Cancelled")
		return nil
	}

	for _, p := range claimable {
		txRef, err := a.relayer.Redeem(ctx, p.ConditionID, p.OutcomeIndex, p.Size)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", p.Title, err)
			continue
		}

		fmt.Printf("✅ %s: tx %s\n", p.Title, txRef)
		waitForSettlement(a, p.Asset, p.Size, "")
	}

	return nil
}
