// Package engine routes chat commands to the analyzer and the ledger.
package engine

import (
	"github.com/vizzzzk/nifty-options-bot/internal/ledger"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
)

// Kind discriminates the response union.
type Kind string

const (
	KindAnalysis      Kind = "analysis"
	KindExpiries      Kind = "expiries"
	KindPaperTrade    Kind = "paper-trade"
	KindPortfolio     Kind = "portfolio"
	KindClosePosition Kind = "close-position"
	KindReset         Kind = "reset"
	KindError         Kind = "error"
)

// Response is the tagged union returned by the router: one concrete type per
// payload kind, each carrying only its own fields. Every response carries the
// next portfolio value for the caller to persist.
type Response interface {
	Kind() Kind
	// ResultPortfolio is the portfolio after the command. Unchanged inputs
	// are echoed back so the caller can always persist what it receives.
	ResultPortfolio() models.Portfolio
	// NewAccessToken is non-empty only when the command minted a token.
	NewAccessToken() string
}

type base struct {
	Portfolio   models.Portfolio
	AccessToken string
}

func (b base) ResultPortfolio() models.Portfolio { return b.Portfolio }
func (b base) NewAccessToken() string            { return b.AccessToken }

// AnalysisResponse is the full market read for one expiry.
type AnalysisResponse struct {
	base
	SpotPrice      float64
	DTE            int
	LotSize        int
	Expiry         string
	Timestamp      string
	MarketAnalysis models.MarketAnalysis
	Opportunities  []models.Opportunity
	QualifiedCE    []models.Opportunity
	QualifiedPE    []models.Opportunity
	Recommendation *models.TradeRecommendation
	VIX            *float64
	MaxPain        *float64
}

func (AnalysisResponse) Kind() Kind { return KindAnalysis }

// ExpiriesResponse lists the selectable expiry dates.
type ExpiriesResponse struct {
	base
	Expiries []models.ExpiryDate
}

func (ExpiriesResponse) Kind() Kind { return KindExpiries }

// PaperTradeResponse confirms an opened position.
type PaperTradeResponse struct {
	base
	Message string
}

func (PaperTradeResponse) Kind() Kind { return KindPaperTrade }

// PortfolioResponse is the portfolio listing with marks.
type PortfolioResponse struct {
	base
	Message string
	Report  ledger.MTMReport
}

func (PortfolioResponse) Kind() Kind { return KindPortfolio }

// ClosePositionResponse confirms a closed position.
type ClosePositionResponse struct {
	base
	Message string
}

func (ClosePositionResponse) Kind() Kind { return KindClosePosition }

// ResetResponse confirms a portfolio reset.
type ResetResponse struct {
	base
	Message string
}

func (ResetResponse) Kind() Kind { return KindReset }

// ErrorResponse carries a human-readable failure; AuthURL is set when the
// fix is re-authorizing with the broker.
type ErrorResponse struct {
	base
	Message string
	AuthURL string
}

func (ErrorResponse) Kind() Kind { return KindError }
