// Package positions serves cached portfolio snapshots and display
// filtering over them.
package positions

import "github.com/predictdesk/engine/internal/contracts"

// FilterOptions controls which positions Filter keeps.
type FilterOptions struct {
	// MinSize is the absolute share floor. Positions at or below it are
	// residue from partial fills and are always dropped.
	MinSize float64

	// HideDust additionally drops positions worth less than DustValue
	// dollars, unless the position is redeemable.
	HideDust  bool
	DustValue float64
}

// Filter returns the positions worth displaying. Redeemable positions
// survive the dust-value filter regardless of worth, since they still
// represent claimable funds.
func Filter(positions []contracts.Position, opts FilterOptions) []contracts.Position {
	kept := make([]contracts.Position, 0, len(positions))

	for _, p := range positions {
		if p.Size <= opts.MinSize {
			continue
		}
		if opts.HideDust && !p.Redeemable && p.Value() < opts.DustValue {
			continue
		}
		kept = append(kept, p)
	}

	return kept
}

// Redeemable returns only the positions in resolved markets awaiting
// redemption.
func Redeemable(positions []contracts.Position) []contracts.Position {
	kept := make([]contracts.Position, 0)
	for _, p := range positions {
		if p.Redeemable && p.Size > 0 {
			kept = append(kept, p)
		}
	}
	return kept
}
