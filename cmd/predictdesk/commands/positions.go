package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/predictdesk/engine/internal/positions"
)

var positionsAll bool

// positionsCmd represents the positions command
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Show open positions and balance",
	Long: `Shows open positions for the configured wallet. Residue below the
minimum share size is always hidden; --all disables the additional
low-value dust filter.

Example:
  go run ./cmd/predictdesk positions
  go run ./cmd/predictdesk positions --all`,
	RunE: runPositions,
}

func init() {
	rootCmd.AddCommand(positionsCmd)

	positionsCmd.Flags().BoolVar(&positionsAll, "all", false, "include low-value dust positions")
}

func runPositions(cmd *cobra.Command, args []string) error {
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

	kept := positions.Filter(snap.Positions, positions.FilterOptions{
		MinSize:   a.cfg.Trading.DustMinSize,
		HideDust:  !positionsAll,
		DustValue: a.cfg.Trading.DustThreshold,
	})

	if snap.Stale {
		fmt.Println("⚠️  Showing cached data; portfolio service unreachable")
	}

	fmt.Printf("Balance: $%.2f\n\n", snap.Balance)

	if len(kept) == 0 {
		fmt.Println("No positions")
		return nil
	}

	fmt.Printf("%-40s %-8s %10s %8s %8s %10s\n", "MARKET", "OUTCOME", "SIZE", "AVG", "CUR", "VALUE")
	for _, p := range kept {
		title := p.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}

		marker := ""
		if p.Redeemable {
			marker = " *"
		}

		fmt.Printf("%-40s %-8s %10.2f %8.3f %8.3f %10.2f%s\n",
			title, p.Outcome, p.Size, p.AvgPrice, p.CurPrice, p.Value(), marker)
	}

	fmt.Println("\n* redeemable")
	return nil
}
