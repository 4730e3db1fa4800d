package contracts

// OutcomeToken is one side of a binary market.
type OutcomeToken struct {
	TokenID string
	Label   string  // e.g. "Yes" / "No"
	Price   float64 // live price; the two outcome prices need not sum to 1
}

// Instrument is a tradeable binary market.
// Tick sizes are resolved per outcome token through the quote cache,
// not stored here: the two outcomes of one market may differ.
type Instrument struct {
	ConditionID  string
	Question     string
	Outcomes     [2]OutcomeToken
	MinOrderSize float64 // minimum SELL size in shares
}

// Outcome returns the outcome token with the given id.
func (i Instrument) Outcome(tokenID string) (OutcomeToken, bool) {
	for _, o := range i.Outcomes {
		if o.TokenID == tokenID {
			return o, true
		}
	}
	return OutcomeToken{}, false
}
