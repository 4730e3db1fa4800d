package clob

import "github.com/shopspring/decimal"

// Wire payloads for the central limit order book API. Prices and
// amounts travel as decimal strings; the collateral token carries six
// decimal places, so amounts are rendered at that scale.

const (
	amountScale = 6
	priceScale  = 4
)

// formatAmount renders a share or dollar quantity at collateral scale.
func formatAmount(v float64) string {
	return decimal.NewFromFloat(v).Round(amountScale).String()
}

// formatPrice renders a price at order-book scale.
func formatPrice(v float64) string {
	return decimal.NewFromFloat(v).Round(priceScale).String()
}

type tickSizeResponse struct {
	MinimumTickSize string `json:"minimum_tick_size"`
}

type marketResponse struct {
	ConditionID  string  `json:"condition_id"`
	Question     string  `json:"question"`
	MinOrderSize string  `json:"minimum_order_size"`
	Tokens       []token `json:"tokens"`
}

type token struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
}

type orderPayload struct {
	TokenID    string `json:"token_id"`
	Side       string `json:"side"`
	Amount     string `json:"amount"` // dollars for market buys, shares otherwise
	Price      string `json:"price,omitempty"`
	OrderType  string `json:"order_type"` // GTC, GTD, FOK, FAK
	Expiration int64  `json:"expiration,omitempty"`
	ClientID   string `json:"client_order_id"`
	Owner      string `json:"owner"`
}

type orderResponse struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"orderID"`
	ErrorMsg  string `json:"errorMsg"`
	ErrorCode string `json:"error"`
	Status    string `json:"status"`
}

type cancelPayload struct {
	OrderID string `json:"orderID"`
}

type cancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}
