// Package trading turns raw user intent into exchange-compliant orders
// and submits them to the order book.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/internal/pricing"
	"github.com/predictdesk/engine/internal/quotes"
	"github.com/predictdesk/engine/pkg/config"
	"github.com/predictdesk/engine/pkg/logger"
)

// Validator is the single gate between free-form user input and
// anything that reaches the exchange.
type Validator struct {
	quotes *quotes.Cache
	cfg    config.TradingConfig
	clock  func() time.Time
	logger *logger.Logger
}

// AccountState is the client-side view of funds at validation time.
// The exchange remains the authority and may still reject.
type AccountState struct {
	Balance    float64 // available dollars
	HeldShares float64 // shares held for the active outcome
}

// NewValidator creates a new order intent validator.
func NewValidator(q *quotes.Cache, cfg config.TradingConfig, log *logger.Logger) *Validator {
	return &Validator{
		quotes: q,
		cfg:    cfg,
		clock:  time.Now,
		logger: log,
	}
}

// WithClock replaces the wall clock. GTD expirations are derived from
// this clock so validation stays deterministic under test.
func (v *Validator) WithClock(clock func() time.Time) *Validator {
	v.clock = clock
	return v
}

// Validate normalizes an order intent into a ValidatedOrder or returns
// an InputRejectedError naming the failed check. The rejection message
// is surfaced verbatim in the UI.
func (v *Validator) Validate(ctx context.Context, intent contracts.OrderIntent, inst contracts.Instrument, acct AccountState) (*contracts.ValidatedOrder, error) {
	outcome, ok := inst.Outcome(intent.TokenID)
	if !ok {
		return nil, contracts.NewInputRejected(contracts.ReasonUnknownOutcome,
			"unknown outcome token %s", intent.TokenID)
	}

	// 1. Primary-unit minimums. BUY input is dollars, SELL input is
	// shares; the other unit is always derived.
	switch intent.Side {
	case contracts.SideBuy:
		if intent.Input.Unit != contracts.UnitDollars {
			return nil, contracts.NewInputRejected(contracts.ReasonBadInputUnit,
				"buy orders take a dollar amount")
		}
		if intent.Input.Value < v.cfg.MinNotional {
			return nil, contracts.NewInputRejected(contracts.ReasonBelowMinNotional,
				"minimum buy amount is $%.2f", v.cfg.MinNotional)
		}
	case contracts.SideSell:
		if intent.Input.Unit != contracts.UnitShares {
			return nil, contracts.NewInputRejected(contracts.ReasonBadInputUnit,
				"sell orders take a share count")
		}
		if intent.Input.Value < inst.MinOrderSize {
			return nil, contracts.NewInputRejected(contracts.ReasonBelowMinSize,
				"minimum order size is %g shares", inst.MinOrderSize)
		}
	default:
		return nil, contracts.NewInputRejected(contracts.ReasonBadInputUnit,
			"unknown order side %q", intent.Side)
	}

	// 2. Limit price checks against the live tick size. TickSize blocks
	// on a cache miss: order construction must not proceed with a fetch
	// outstanding for the active token.
	if intent.Variant.NeedsPrice() {
		if intent.LimitPrice == 0 {
			return nil, contracts.NewInputRejected(contracts.ReasonMissingLimitPrice,
				"a limit price is required")
		}

		tick, stale, err := v.quotes.TickSize(ctx, intent.TokenID)
		if err != nil {
			return nil, fmt.Errorf("resolve tick size: %w", err)
		}
		if stale {
			v.logger.WithField("token_id", intent.TokenID).Debug("Validating against stale tick size")
		}

		if !pricing.InBounds(intent.LimitPrice, tick) {
			return nil, contracts.NewInputRejected(contracts.ReasonPriceOutOfBounds,
				"price must be between %.4g¢ and %.4g¢",
				pricing.Cents(tick), pricing.Cents(1-tick))
		}
		if !pricing.IsAligned(intent.LimitPrice, tick) {
			return nil, contracts.NewInputRejected(contracts.ReasonPriceOffTick,
				"price must be in increments of %.4g¢", pricing.Cents(tick))
		}
	}

	// 3. Working price: live quote for market-type variants, the
	// already-validated entry for limit-type variants.
	marketType := !intent.Variant.NeedsPrice()
	workingPrice := intent.LimitPrice
	if marketType {
		workingPrice = outcome.Price
	}

	// 4. Size derivation. A zero or missing quote blocks submission; it
	// must never silently divide.
	var shares float64
	if intent.Side == contracts.SideBuy {
		if workingPrice <= 0 {
			return nil, contracts.NewInputRejected(contracts.ReasonNoQuote,
				"no live price for this outcome")
		}
		shares = intent.Input.Value / workingPrice
	} else {
		shares = intent.Input.Value
	}

	// 5. Client-side funds guard.
	if intent.Side == contracts.SideBuy && intent.Input.Value > acct.Balance {
		return nil, contracts.NewInputRejected(contracts.ReasonInsufficientBalance,
			"amount $%.2f exceeds available balance $%.2f", intent.Input.Value, acct.Balance)
	}
	if intent.Side == contracts.SideSell && intent.Input.Value > acct.HeldShares {
		return nil, contracts.NewInputRejected(contracts.ReasonInsufficientShares,
			"%g shares exceeds your %g held", intent.Input.Value, acct.HeldShares)
	}

	// 6. GTD expiration. The safety buffer keeps the order from
	// expiring before network propagation completes.
	var expiration int64
	if intent.Variant == contracts.VariantGoodTilDate {
		if intent.ExpirationWindow <= 0 {
			return nil, contracts.NewInputRejected(contracts.ReasonMissingExpiration,
				"an expiration window is required")
		}
		expiration = v.clock().Unix() +
			int64(v.cfg.GTDSafetyBuffer.Seconds()) +
			int64(intent.ExpirationWindow.Seconds())
	}

	order := &contracts.ValidatedOrder{
		TokenID:    intent.TokenID,
		Side:       intent.Side,
		Shares:     shares,
		MarketType: marketType,
		TIF:        timeInForce(intent.Variant),
		Expiration: expiration,
	}
	if !marketType {
		order.Price = intent.LimitPrice
	}
	if intent.Side == contracts.SideBuy {
		order.Notional = intent.Input.Value
	}

	return order, nil
}

// timeInForce maps an order variant to its exchange fill policy.
func timeInForce(v contracts.Variant) contracts.TimeInForce {
	switch v {
	case contracts.VariantMarket:
		return contracts.TIFFillAndKill
	case contracts.VariantFillOrKill:
		return contracts.TIFFillOrKill
	case contracts.VariantFillAndKill:
		return contracts.TIFFillAndKill
	case contracts.VariantGoodTilDate:
		return contracts.TIFGoodTilDate
	default:
		return contracts.TIFGoodTilCancelled
	}
}
