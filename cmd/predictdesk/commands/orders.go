package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ordersLimit int

// ordersCmd represents the orders command
var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Order journal",
	Long: `Inspects the order journal and manages resting orders.

Subcommands:
  list            - recent journaled orders
  cancel [id]     - cancel a resting order

Example:
  go run ./cmd/predictdesk orders list
  go run ./cmd/predictdesk orders cancel 0xorder...`,
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Recent journaled orders",
	RunE:  runOrdersList,
}

var ordersCancelCmd = &cobra.Command{
	Use:   "cancel [order_id]",
	Short: "Cancel a resting order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersCancel,
}

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersCancelCmd)

	ordersListCmd.Flags().IntVar(&ordersLimit, "limit", 20, "number of orders to show")
}

func runOrdersList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.journal == nil {
		return fmt.Errorf("order journal requires DATABASE_URL")
	}

	entries, err := a.journal.ListRecent(ctx, ordersLimit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No journaled orders")
		return nil
	}

	fmt.Printf("%-20s %-5s %-5s %10s %8s %-12s %-10s\n", "SUBMITTED", "SIDE", "TIF", "SHARES", "PRICE", "SETTLEMENT", "ORDER")
	for _, e := range entries {
		settled := e.Settlement
		if settled == "" {
			settled = "-"
		}

		fmt.Printf("%-20s %-5s %-5s %10.2f %8.3f %-12s %s\n",
			e.SubmittedAt.Format("2006-01-02 15:04:05"),
			e.Side, e.TIF, e.Shares, e.Price, settled, e.OrderID)
	}

	return nil
}

func runOrdersCancel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.gateway.Cancel(ctx, args[0]); err != nil {
		return err
	}

	fmt.Printf("✅ Cancelled %s\n", args[0])
	return nil
}
