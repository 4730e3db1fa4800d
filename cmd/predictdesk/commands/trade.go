package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/internal/positions"
	"github.com/predictdesk/engine/internal/settlement"
	"github.com/predictdesk/engine/internal/trading"
)

var (
	// Trade flags
	tradeType    string
	tradePrice   float64
	tradeExpires time.Duration
	tradeYes     bool
)

// buyCmd represents the buy command
var buyCmd = &cobra.Command{
	Use:   "buy [condition_id] [outcome] [dollars]",
	Short: "Buy outcome shares",
	Long: `Buys shares of one outcome of a market. The amount is in dollars;
the share quantity is derived from the live or entered price.

Order types:
  market  - fill immediately at the best price (default)
  fok     - fill the whole order immediately or cancel
  limit   - rest on the book at --price until cancelled
  fak     - fill what is available at --price, cancel the rest
  gtd     - rest at --price until --expires elapses

Example:
  go run ./cmd/predictdesk buy 0xcond... Yes 20
  go run ./cmd/predictdesk buy 0xcond... No 50 --type limit --price 0.35
  go run ./cmd/predictdesk buy 0xcond... Yes 20 --type gtd --price 0.35 --expires 24h`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrade(cmd.Context(), contracts.SideBuy, args)
	},
}

// sellCmd represents the sell command
var sellCmd = &cobra.Command{
	Use:   "sell [condition_id] [outcome] [shares]",
	Short: "Sell outcome shares",
	Long: `Sells shares of one outcome of a market. The amount is in shares
taken from the current position.

Example:
  go run ./cmd/predictdesk sell 0xcond... Yes 40
  go run ./cmd/predictdesk sell 0xcond... Yes 40 --type limit --price 0.72`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrade(cmd.Context(), contracts.SideSell, args)
	},
}

func init() {
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(sellCmd)

	for _, cmd := range []*cobra.Command{buyCmd, sellCmd} {
		cmd.Flags().StringVar(&tradeType, "type", "market", "order type (market|limit|fok|fak|gtd)")
		cmd.Flags().Float64Var(&tradePrice, "price", 0, "limit price in dollars per share")
		cmd.Flags().DurationVar(&tradeExpires, "expires", 0, "lifetime for gtd orders")
		cmd.Flags().BoolVarP(&tradeYes, "yes", "y", false, "skip confirmation prompt")
	}
}

func runTrade(ctx context.Context, side contracts.Side, args []string) error {
	conditionID, outcomeLabel := args[0], args[1]

	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("bad amount %q", args[2])
	}

	variant, err := parseVariant(tradeType)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	inst, err := a.clob.FetchInstrument(ctx, conditionID)
	if err != nil {
		return fmt.Errorf("fetch market: %w", err)
	}

	tokenID, err := resolveOutcome(inst, outcomeLabel)
	if err != nil {
		return err
	}

	snap, err := a.snapshots.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch portfolio: %w", err)
	}

	balance, held := positions.AccountState(snap, tokenID)

	intent := contracts.OrderIntent{
		Side:             side,
		Variant:          variant,
		TokenID:          tokenID,
		LimitPrice:       tradePrice,
		ExpirationWindow: tradeExpires,
	}
	if side == contracts.SideBuy {
		intent.Input = contracts.DollarInput(amount)
	} else {
		intent.Input = contracts.ShareInput(amount)
	}

	order, err := a.validator.Validate(ctx, intent, *inst, trading.AccountState{
		Balance:    balance,
		HeldShares: held,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s %q\n", inst.ConditionID, inst.Question, outcomeLabel)
	if side == contracts.SideBuy {
		fmt.Printf("  BUY  $%.2f (~%.2f shares)  type=%s", order.Notional, order.Shares, tradeType)
	} else {
		proceeds := order.Shares * order.Price
		if order.Price == 0 {
			if out, ok := inst.Outcome(tokenID); ok {
				proceeds = order.Shares * out.Price
			}
		}
		fmt.Printf("  SELL %.2f shares (~$%.2f)  type=%s", order.Shares, proceeds, tradeType)
	}
	if order.Price > 0 {
		fmt.Printf("  price=%.4g", order.Price)
	}
	if order.Expiration > 0 {
		fmt.Printf("  expires=%s", time.Unix(order.Expiration, 0).Format(time.RFC3339))
	}
	fmt.Println()

	if !tradeYes && !confirm("Submit order?") {
		fmt.Println("Cancelled")
		return nil
	}

	submitted, err := a.gateway.Submit(ctx, *order)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Order submitted: %s\n", submitted.OrderID)

	// Sells reduce the position; hold the process open until the
	// ledger reflects the fill or the polling budget elapses.
	if side == contracts.SideSell {
		waitForSettlement(a, tokenID, held, submitted.OrderID)
	}

	return nil
}

// waitForSettlement tracks a size-reducing action and blocks until it
// resolves.
func waitForSettlement(a *app, asset string, preSize float64, orderID string) {
	p := a.reconciler.Track(asset, preSize, orderID)

	fmt.Printf("Waiting for settlement (budget %s)...\n", a.cfg.Trading.PollBudget)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if _, pending := a.reconciler.StateOf(asset); !pending {
			break
		}
	}

	switch p.State {
	case settlement.StateConfirmed:
		fmt.Println("✅ Settlement confirmed")
	default:
		fmt.Println("⚠️  Settlement not confirmed within budget; it may still complete")
	}
}

func parseVariant(s string) (contracts.Variant, error) {
	switch strings.ToLower(s) {
	case "market":
		return contracts.VariantMarket, nil
	case "limit":
		return contracts.VariantLimit, nil
	case "fok":
		return contracts.VariantFillOrKill, nil
	case "fak":
		return contracts.VariantFillAndKill, nil
	case "gtd":
		return contracts.VariantGoodTilDate, nil
	default:
		return "", fmt.Errorf("unknown order type %q (market|limit|fok|fak|gtd)", s)
	}
}

func resolveOutcome(inst *contracts.Instrument, label string) (string, error) {
	for _, out := range inst.Outcomes {
		if strings.EqualFold(out.Label, label) {
			return out.TokenID, nil
		}
	}
	return "", fmt.Errorf("market has no outcome %q (have %q, %q)",
		label, inst.Outcomes[0].Label, inst.Outcomes[1].Label)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
