// Package pricing enforces tick-size alignment and bounds for outcome
// prices. Prices represent probabilities in (0,1) and must stay at
// least one tick away from either boundary.
package pricing

import "math"

// Epsilon absorbs binary floating-point error when comparing prices.
// A fixed decimal-place round would misclassify ticks like 0.001.
const Epsilon = 1e-9

// IsAligned reports whether price is a whole multiple of tick within
// floating-point tolerance.
func IsAligned(price, tick float64) bool {
	if tick <= 0 {
		return false
	}
	nearest := math.Round(price/tick) * tick
	return math.Abs(price-nearest) <= Epsilon
}

// InBounds reports whether tick <= price <= 1-tick.
func InBounds(price, tick float64) bool {
	if tick <= 0 {
		return false
	}
	return price >= tick-Epsilon && price <= 1-tick+Epsilon
}

// Cents converts a decimal-fraction price to cents. Rejection messages
// quote the tick size in cents because that is how users reason about
// entered prices.
func Cents(price float64) float64 {
	return price * 100
}
