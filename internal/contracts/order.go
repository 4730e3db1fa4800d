package contracts

import "time"

// Side represents buy or sell.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Variant represents the order variant selected by the user.
type Variant string

const (
	VariantMarket      Variant = "MARKET"
	VariantLimit       Variant = "LIMIT"
	VariantFillAndKill Variant = "FILL_AND_KILL"
	VariantFillOrKill  Variant = "FILL_OR_KILL"
	VariantGoodTilDate Variant = "GOOD_TIL_DATE"
)

// NeedsPrice reports whether the variant requires a user-entered limit price.
// Pure market variants take the live quote instead.
func (v Variant) NeedsPrice() bool {
	switch v {
	case VariantLimit, VariantFillAndKill, VariantGoodTilDate:
		return true
	}
	return false
}

// InputUnit marks which unit the raw user input is denominated in.
type InputUnit string

const (
	UnitDollars InputUnit = "DOLLARS"
	UnitShares  InputUnit = "SHARES"
)

// OrderInput is the tagged user input: a dollar amount for BUY, a share
// count for SELL. The other unit is always derived, never taken directly.
type OrderInput struct {
	Unit  InputUnit
	Value float64
}

// DollarInput returns an amount-denominated input.
func DollarInput(v float64) OrderInput {
	return OrderInput{Unit: UnitDollars, Value: v}
}

// ShareInput returns a shares-denominated input.
func ShareInput(v float64) OrderInput {
	return OrderInput{Unit: UnitShares, Value: v}
}

// OrderIntent is the raw trading intent entered through the UI.
type OrderIntent struct {
	Side    Side
	Variant Variant
	TokenID string // selected outcome token
	Input   OrderInput

	// LimitPrice is the user-entered price for limit-family variants.
	// Zero means no price was entered (prices are always at least one
	// tick above zero, so zero is never a valid price).
	LimitPrice float64

	// ExpirationWindow is the user-selected lifetime for GOOD_TIL_DATE.
	ExpirationWindow time.Duration
}

// TimeInForce is the exchange-level fill policy of a validated order.
type TimeInForce string

const (
	TIFGoodTilCancelled TimeInForce = "GTC"
	TIFGoodTilDate      TimeInForce = "GTD"
	TIFFillOrKill       TimeInForce = "FOK"
	TIFFillAndKill      TimeInForce = "FAK"
)

// ValidatedOrder is an exchange-compliant order produced by the
// validator. Immutable once handed to the gateway.
type ValidatedOrder struct {
	TokenID string
	Side    Side

	// Shares is the computed order size.
	Shares float64

	// Price is the tick-aligned limit price. Zero for market-type orders.
	Price float64

	// Notional is the dollar amount entered for a BUY. Market BUY orders
	// are submitted in dollars, so the original amount is carried through
	// rather than re-derived from Shares*Price.
	Notional float64

	// MarketType distinguishes market-type from limit-type execution.
	MarketType bool

	// TIF is the fill policy derived from the order variant.
	TIF TimeInForce

	// Expiration is the absolute expiration, seconds since epoch.
	// Zero for orders without a time bound.
	Expiration int64
}

// SubmittedOrder is a ValidatedOrder accepted by the exchange.
type SubmittedOrder struct {
	ValidatedOrder

	OrderID     string // externally issued order identifier
	ClientID    string // locally generated submission identifier
	SubmittedAt time.Time
}
