package models

// ChainSide carries the market data for one side (call or put) of a strike.
// IV is a percentage; the Upstox client converts the wire fraction once at
// ingestion so every consumer sees the same unit.
type ChainSide struct {
	LTP           float64
	Volume        int64
	OI            int64
	Delta         float64
	IV            float64
	InstrumentKey string
}

// ChainRow is one strike of the option chain. Either side may be absent.
type ChainRow struct {
	Strike float64
	Call   *ChainSide
	Put    *ChainSide
}

// ChainSnapshot is a point-in-time option chain for one expiry.
type ChainSnapshot struct {
	Expiry    string
	SpotPrice float64
	VIX       *float64
	Rows      []ChainRow
}

// Side returns the requested side of the row, nil if absent.
func (r ChainRow) Side(t OptionType) *ChainSide {
	if t == CE {
		return r.Call
	}
	return r.Put
}

// ExpiryDate is one selectable expiry with its display label.
type ExpiryDate struct {
	Value     string `json:"value"`
	Label     string `json:"label"`
	IsMonthly bool   `json:"isMonthly"`
	DTE       int    `json:"dte"`
}
