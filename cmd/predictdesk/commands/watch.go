package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/predictdesk/engine/internal/external/clob"
	"github.com/predictdesk/engine/internal/scheduler"
	"github.com/predictdesk/engine/internal/scheduler/jobs"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the settlement watcher daemon",
	Long: `Runs the background watcher:
- user channel websocket for immediate fill confirmations
- periodic position snapshot refresh
- periodic sweep of expired settlement actions

Stop with Ctrl+C.

Example:
  go run ./cmd/predictdesk watch`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ws := clob.NewWSClient(a.cfg.CLOB, a.logger)
	ws.OnTrade(func(event *clob.TradeEvent) {
		if a.reconciler.ConfirmFill(event.AssetID, event.OrderID) {
			a.logger.WithFields(map[string]interface{}{
				"asset":    event.AssetID,
				"order_id": event.OrderID,
			}).Info("Settlement confirmed from trade event")
		}
	})

	if err := ws.Connect(ctx); err != nil {
		a.logger.WithError(err).Warn("User channel unavailable, relying on polling only")
	} else {
		defer ws.Disconnect()
	}

	sched := scheduler.New(a.logger)
	if err := sched.AddJob(jobs.NewSnapshotRefreshJob(a.snapshots, a.logger)); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewSettlementSweepJob(a.reconciler, a.logger)); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	fmt.Println("=== PredictDesk Watcher ===")
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n✅ Watcher stopped")
	return nil
}
