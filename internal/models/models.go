// Package models defines the core data model for analysis and paper trading.
package models

import "time"

// OptionType identifies the side of an option contract.
type OptionType string

const (
	CE OptionType = "CE"
	PE OptionType = "PE"
)

// TradeAction is the direction of a trade.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// Opposite returns the closing action for an open leg.
func (a TradeAction) Opposite() TradeAction {
	if a == ActionBuy {
		return ActionSell
	}
	return ActionBuy
}

// LiquidityGrade classifies how tradeable a strike is.
type LiquidityGrade string

const (
	LiquidityPoor      LiquidityGrade = "Poor"
	LiquidityFair      LiquidityGrade = "Fair"
	LiquidityGood      LiquidityGrade = "Good"
	LiquidityExcellent LiquidityGrade = "Excellent"
)

// Liquidity is a combined volume/open-interest score with its grade.
type Liquidity struct {
	Score float64        `json:"score"`
	Grade LiquidityGrade `json:"grade"`
}

// OptionData is an immutable snapshot of one side of one strike.
// IV is expressed as a percentage (18.5 means 18.5%).
type OptionData struct {
	Strike        float64   `json:"strike"`
	Delta         float64   `json:"delta"`
	IV            float64   `json:"iv"`
	LTP           float64   `json:"ltp"`
	PoP           float64   `json:"pop"`
	Liquidity     Liquidity `json:"liquidity"`
	InstrumentKey string    `json:"instrumentKey"`
}

// ScoreBreakdown itemizes how an opportunity's total score was built.
type ScoreBreakdown struct {
	DeltaScore     float64 `json:"deltaScore"`
	IVScore        float64 `json:"ivScore"`
	LiquidityScore float64 `json:"liquidityScore"`
	AlignmentBonus float64 `json:"alignmentBonus"`
}

// Opportunity is a qualified option with its score breakdown.
type Opportunity struct {
	OptionData
	Type           OptionType     `json:"type"`
	TotalScore     float64        `json:"totalScore"`
	ScoreBreakdown ScoreBreakdown `json:"scoreBreakdown"`
}

// Sentiment is the market direction read from put/call ratios.
type Sentiment string

const (
	SentimentBullish Sentiment = "Bullish"
	SentimentBearish Sentiment = "Bearish"
	SentimentNeutral Sentiment = "Neutral"
)

// Recommendation is the side the sentiment analysis favors.
type Recommendation string

const (
	ConsiderCE Recommendation = "Consider CEs"
	ConsiderPE Recommendation = "Consider PEs"
	Mixed      Recommendation = "Mixed"
)

// Matches reports whether an option side aligns with the recommendation.
func (r Recommendation) Matches(t OptionType) bool {
	return (r == ConsiderCE && t == CE) || (r == ConsiderPE && t == PE)
}

// Confidence grades how strong the sentiment signal is.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// MarketAnalysis is the sentiment read derived once per (expiry, snapshot).
type MarketAnalysis struct {
	Sentiment      Sentiment      `json:"sentiment"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     Confidence     `json:"confidence"`
	PCROI          float64        `json:"pcrOi"`
	PCRVolume      float64        `json:"pcrVolume"`
	Interpretation string         `json:"interpretation"`
	TradingBias    string         `json:"tradingBias"`
}

// TradeRecommendation is the single suggested trade from an analysis.
type TradeRecommendation struct {
	Reason       string `json:"reason"`
	TradeCommand string `json:"tradeCommand"`
}

// Position is an open simulated leg. Owned exclusively by the Portfolio;
// it is removed, never mutated, when closed.
type Position struct {
	ID            int         `json:"id"`
	Type          OptionType  `json:"type"`
	Strike        float64     `json:"strike"`
	Action        TradeAction `json:"action"`
	Lots          int         `json:"lots"`
	EntryPrice    float64     `json:"entryPrice"`
	Expiry        string      `json:"expiry"`
	EntryTime     time.Time   `json:"entryTimestamp"`
	InstrumentKey string      `json:"instrumentKey"`
	MarginBlocked float64     `json:"marginBlocked"`
	StopLoss      float64     `json:"stopLoss"`
	EntryDelta    *float64    `json:"entryDelta,omitempty"`
}

// TradeHistoryItem is a closed position stamped with its exit economics.
// Created exactly once, at close time.
type TradeHistoryItem struct {
	Position
	ExitPrice  float64   `json:"exitPrice"`
	ExitTime   time.Time `json:"exitTimestamp"`
	GrossPnL   float64   `json:"grossPnl"`
	NetPnL     float64   `json:"netPnl"`
	TotalCosts float64   `json:"totalCosts"`
	ExitDelta  *float64  `json:"exitDelta,omitempty"`
}

// Portfolio is the full paper-trading ledger state. It is round-tripped by
// value: the caller passes the current state in and stores the state that
// comes back. The engine holds nothing between calls.
type Portfolio struct {
	Positions        []Position         `json:"positions"`
	InitialFunds     float64            `json:"initialFunds"`
	RealizedPnL      float64            `json:"realizedPnL"`
	BlockedMargin    float64            `json:"blockedMargin"`
	LastActiveExpiry string             `json:"lastActiveExpiry,omitempty"`
	WinningTrades    int                `json:"winningTrades"`
	TotalTrades      int                `json:"totalTrades"`
	TradeHistory     []TradeHistoryItem `json:"tradeHistory"`
}

// NewPortfolio returns a zeroed portfolio with the given starting funds.
func NewPortfolio(initialFunds float64) Portfolio {
	return Portfolio{
		Positions:    []Position{},
		InitialFunds: initialFunds,
		TradeHistory: []TradeHistoryItem{},
	}
}

// TotalFunds is the account value ignoring blocked margin.
func (p Portfolio) TotalFunds() float64 {
	return p.InitialFunds + p.RealizedPnL
}

// AvailableFunds is what remains deployable after blocked margin.
func (p Portfolio) AvailableFunds() float64 {
	return p.InitialFunds + p.RealizedPnL - p.BlockedMargin
}

// NextPositionID allocates the next trade ID. IDs are never reused across
// the life of the portfolio, so closed trades keep their numbers.
func (p Portfolio) NextPositionID() int {
	max := 0
	for _, pos := range p.Positions {
		if pos.ID > max {
			max = pos.ID
		}
	}
	for _, item := range p.TradeHistory {
		if item.ID > max {
			max = item.ID
		}
	}
	return max + 1
}

// FindPosition returns the open position with the given ID.
func (p Portfolio) FindPosition(id int) (Position, bool) {
	for _, pos := range p.Positions {
		if pos.ID == id {
			return pos, true
		}
	}
	return Position{}, false
}

// Clone returns a deep copy so transitions never alias the caller's slices.
func (p Portfolio) Clone() Portfolio {
	out := p
	out.Positions = make([]Position, len(p.Positions))
	copy(out.Positions, p.Positions)
	out.TradeHistory = make([]TradeHistoryItem, len(p.TradeHistory))
	copy(out.TradeHistory, p.TradeHistory)
	return out
}
