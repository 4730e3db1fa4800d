package contracts

import "time"

// Position is a snapshot of an owned outcome token. Positions are
// mutated only by the external ledger; this engine reads snapshots.
type Position struct {
	Asset        string  // outcome token id
	ConditionID  string  // parent market
	OutcomeIndex int
	Outcome      string
	Title        string
	Size         float64 // owned shares
	AvgPrice     float64 // average entry price
	CurPrice     float64 // current market price
	Redeemable   bool    // market resolved; flag comes from the ledger
}

// Value returns the current market value of the position.
func (p Position) Value() float64 {
	return p.Size * p.CurPrice
}

// Snapshot is a point-in-time view of positions and balance.
type Snapshot struct {
	Positions []Position
	Balance   float64 // available dollars
	FetchedAt time.Time
	Stale     bool
}

// SizeOf returns the held share size for an asset, zero if absent.
func (s *Snapshot) SizeOf(asset string) float64 {
	for _, p := range s.Positions {
		if p.Asset == asset {
			return p.Size
		}
	}
	return 0
}
