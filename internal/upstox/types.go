package upstox

// Wire types for the Upstox v2 REST API.

type contractResponse struct {
	Status string         `json:"status"`
	Data   []contractItem `json:"data"`
}

type contractItem struct {
	Expiry string `json:"expiry"`
}

type chainResponse struct {
	Status string     `json:"status"`
	Data   []chainRow `json:"data"`
}

type chainRow struct {
	Expiry              string     `json:"expiry"`
	StrikePrice         float64    `json:"strike_price"`
	UnderlyingKey       string     `json:"underlying_key"`
	UnderlyingSpotPrice float64    `json:"underlying_spot_price"`
	CallOptions         *chainSide `json:"call_options"`
	PutOptions          *chainSide `json:"put_options"`
}

type chainSide struct {
	InstrumentKey string       `json:"instrument_key"`
	MarketData    marketData   `json:"market_data"`
	OptionGreeks  optionGreeks `json:"option_greeks"`
}

type marketData struct {
	LTP        float64 `json:"ltp"`
	ClosePrice float64 `json:"close_price"`
	Volume     float64 `json:"volume"`
	OI         float64 `json:"oi"`
	BidPrice   float64 `json:"bid_price"`
	AskPrice   float64 `json:"ask_price"`
	PrevOI     float64 `json:"prev_oi"`
}

type optionGreeks struct {
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Gamma float64 `json:"gamma"`
	Delta float64 `json:"delta"`
	IV    float64 `json:"iv"`
}

type ltpResponse struct {
	Status string              `json:"status"`
	Data   map[string]ltpQuote `json:"data"`
}

type ltpQuote struct {
	LastPrice       float64 `json:"last_price"`
	InstrumentToken string  `json:"instrument_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}
