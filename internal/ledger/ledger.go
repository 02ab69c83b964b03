// Package ledger owns the paper-trading portfolio state transitions.
//
// Every operation is a pure transition over models.Portfolio: the caller
// passes the current value in and stores the value that comes out. The
// Ledger itself keeps no portfolio state between calls.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vizzzzk/nifty-options-bot/internal/costs"
	apperrors "github.com/vizzzzk/nifty-options-bot/internal/errors"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
	"github.com/vizzzzk/nifty-options-bot/internal/upstox"
	"github.com/vizzzzk/nifty-options-bot/pkg/utils"
)

// Ledger executes portfolio transitions against live market data.
type Ledger struct {
	market   upstox.MarketDataClient
	schedule costs.Schedule
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a ledger.
func New(market upstox.MarketDataClient, schedule costs.Schedule, logger zerolog.Logger) *Ledger {
	return &Ledger{
		market:   market,
		schedule: schedule,
		logger:   logger.With().Str("component", "ledger").Logger(),
		now:      time.Now,
	}
}

// WithClock overrides the ledger clock. Tests use this to pin market hours.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// OpenRequest describes the leg to open.
type OpenRequest struct {
	Type   models.OptionType
	Strike float64
	Action models.TradeAction
	Lots   int
	Price  float64
}

// OpenResult reports the opened position and its economics.
type OpenResult struct {
	Position       models.Position
	Premium        float64
	Margin         float64
	EntryCosts     costs.Breakdown
	AvailableAfter float64
}

// OpenPosition opens a new paper position. Preconditions, in order: an
// active expiry must be selected, the market must be open, the instrument
// must exist in the current chain, and margin must fit available funds.
func (l *Ledger) OpenPosition(ctx context.Context, pf models.Portfolio, token string, req OpenRequest) (models.Portfolio, OpenResult, error) {
	if req.Lots <= 0 {
		return pf, OpenResult{}, apperrors.NewValidationError("lots", req.Lots, "must be positive")
	}
	if req.Price <= 0 {
		return pf, OpenResult{}, apperrors.NewValidationError("price", req.Price, "must be positive")
	}
	if pf.LastActiveExpiry == "" {
		return pf, OpenResult{}, apperrors.ErrNoActiveExpiry
	}
	if !utils.IsMarketOpenAt(l.now()) {
		return pf, OpenResult{}, apperrors.ErrMarketClosed
	}

	chain, err := l.market.GetOptionChain(ctx, token, pf.LastActiveExpiry)
	if err != nil {
		return pf, OpenResult{}, fmt.Errorf("fetch chain for %s: %w", pf.LastActiveExpiry, err)
	}

	side := findSide(chain, req.Strike, req.Type)
	if side == nil || side.InstrumentKey == "" || chain.SpotPrice <= 0 {
		return pf, OpenResult{}, fmt.Errorf("%w: %s %g @ %s",
			apperrors.ErrInstrumentNotFound, req.Type, req.Strike, pf.LastActiveExpiry)
	}

	premium := req.Price * float64(req.Lots) * float64(l.schedule.LotSize)
	margin := l.schedule.Margin(chain.SpotPrice, premium)
	available := pf.AvailableFunds()
	if margin > available {
		return pf, OpenResult{}, fmt.Errorf("%w: margin required %.2f, available %.2f",
			apperrors.ErrInsufficientFunds, margin, available)
	}

	next := pf.Clone()
	entryDelta := side.Delta
	pos := models.Position{
		ID:            next.NextPositionID(),
		Type:          req.Type,
		Strike:        req.Strike,
		Action:        req.Action,
		Lots:          req.Lots,
		EntryPrice:    req.Price,
		Expiry:        next.LastActiveExpiry,
		EntryTime:     l.now(),
		InstrumentKey: side.InstrumentKey,
		MarginBlocked: margin,
		StopLoss:      stopLossFor(req.Action, req.Price),
		EntryDelta:    &entryDelta,
	}

	next.Positions = append(next.Positions, pos)
	next.BlockedMargin = utils.Round2(next.BlockedMargin + margin)

	entryCosts := l.schedule.Costs(req.Price, req.Lots, req.Action)

	l.logger.Info().
		Int("position_id", pos.ID).
		Str("type", string(pos.Type)).
		Float64("strike", pos.Strike).
		Str("action", string(pos.Action)).
		Int("lots", pos.Lots).
		Float64("margin", margin).
		Msg("position opened")

	return next, OpenResult{
		Position:       pos,
		Premium:        utils.Round2(premium),
		Margin:         margin,
		EntryCosts:     entryCosts,
		AvailableAfter: utils.Round2(next.AvailableFunds()),
	}, nil
}

// stopLossFor is a fixed heuristic: short legs stop out when the premium
// doubles, long legs when it halves.
func stopLossFor(action models.TradeAction, price float64) float64 {
	if action == models.ActionSell {
		return utils.Round2(2 * price)
	}
	return utils.Round2(0.5 * price)
}

// CloseResult reports the closed trade and its cost legs.
type CloseResult struct {
	Item       models.TradeHistoryItem
	EntryCosts costs.Breakdown
	ExitCosts  costs.Breakdown
}

// ClosePosition closes an open position at the live price, moving it from
// the open set into trade history. Closing is deliberately not gated on
// market hours; exits use the last traded price.
func (l *Ledger) ClosePosition(ctx context.Context, pf models.Portfolio, token string, positionID int) (models.Portfolio, CloseResult, error) {
	pos, ok := pf.FindPosition(positionID)
	if !ok {
		return pf, CloseResult{}, fmt.Errorf("%w: #%d", apperrors.ErrPositionNotFound, positionID)
	}

	exitPrice, err := l.market.GetQuote(ctx, token, pos.InstrumentKey)
	if err != nil {
		return pf, CloseResult{}, fmt.Errorf("exit quote for %s %g: %w", pos.Type, pos.Strike, err)
	}
	if exitPrice <= 0 {
		return pf, CloseResult{}, fmt.Errorf("%w: %s %g", apperrors.ErrQuoteUnavailable, pos.Type, pos.Strike)
	}

	grossPnL := grossPnL(pos, exitPrice, l.schedule.LotSize)
	entryCosts := l.schedule.Costs(pos.EntryPrice, pos.Lots, pos.Action)
	exitCosts := l.schedule.Costs(exitPrice, pos.Lots, pos.Action.Opposite())
	totalCosts := utils.Round2(entryCosts.Total + exitCosts.Total)
	netPnL := utils.Round2(grossPnL - totalCosts)

	item := models.TradeHistoryItem{
		Position:   pos,
		ExitPrice:  exitPrice,
		ExitTime:   l.now(),
		GrossPnL:   grossPnL,
		NetPnL:     netPnL,
		TotalCosts: totalCosts,
		ExitDelta:  l.exitDelta(ctx, token, pos),
	}

	next := pf.Clone()
	remaining := next.Positions[:0]
	for _, p := range next.Positions {
		if p.ID != positionID {
			remaining = append(remaining, p)
		}
	}
	next.Positions = remaining
	next.TradeHistory = append(next.TradeHistory, item)
	next.RealizedPnL = utils.Round2(next.RealizedPnL + netPnL)
	next.BlockedMargin = utils.Round2(next.BlockedMargin - pos.MarginBlocked)
	next.TotalTrades++
	if netPnL > 0 {
		next.WinningTrades++
	}

	l.logger.Info().
		Int("position_id", pos.ID).
		Float64("exit_price", exitPrice).
		Float64("net_pnl", netPnL).
		Msg("position closed")

	return next, CloseResult{Item: item, EntryCosts: entryCosts, ExitCosts: exitCosts}, nil
}

// grossPnL applies the sign convention: a short leg profits when premium
// falls, a long leg when it rises.
func grossPnL(pos models.Position, exitPrice float64, lotSize int) float64 {
	units := float64(pos.Lots) * float64(lotSize)
	if pos.Action == models.ActionSell {
		return utils.Round2((pos.EntryPrice - exitPrice) * units)
	}
	return utils.Round2((exitPrice - pos.EntryPrice) * units)
}

// exitDelta fetches the closing delta from the chain, best effort only.
func (l *Ledger) exitDelta(ctx context.Context, token string, pos models.Position) *float64 {
	chain, err := l.market.GetOptionChain(ctx, token, pos.Expiry)
	if err != nil {
		l.logger.Debug().Err(err).Msg("exit delta unavailable")
		return nil
	}
	side := findSide(chain, pos.Strike, pos.Type)
	if side == nil {
		return nil
	}
	d := side.Delta
	return &d
}

// PositionMTM is the mark-to-market view of one open position.
type PositionMTM struct {
	Position      models.Position
	CurrentPrice  float64
	UnrealizedPnL float64
	Available     bool
}

// MTMReport aggregates per-position marks.
type MTMReport struct {
	Positions []PositionMTM
	// TotalUnrealized sums the marks that were available.
	TotalUnrealized float64
}

// MarkToMarket values every open position at the live price. Lookups are
// independent and run concurrently; one failed quote degrades that position
// to unavailable instead of failing the report.
func (l *Ledger) MarkToMarket(ctx context.Context, pf models.Portfolio, token string) MTMReport {
	marks := make([]PositionMTM, len(pf.Positions))

	g, gctx := errgroup.WithContext(ctx)
	for i, pos := range pf.Positions {
		i, pos := i, pos
		g.Go(func() error {
			marks[i] = PositionMTM{Position: pos}
			price, err := l.market.GetQuote(gctx, token, pos.InstrumentKey)
			if err != nil || price <= 0 {
				l.logger.Warn().Int("position_id", pos.ID).Err(err).Msg("mark unavailable")
				return nil
			}
			marks[i].CurrentPrice = price
			marks[i].UnrealizedPnL = grossPnL(pos, price, l.schedule.LotSize)
			marks[i].Available = true
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; degradation is per-position

	var total float64
	for _, m := range marks {
		if m.Available {
			total += m.UnrealizedPnL
		}
	}

	return MTMReport{Positions: marks, TotalUnrealized: utils.Round2(total)}
}

// Reset returns a brand-new zeroed portfolio. Nothing carries over.
func (l *Ledger) Reset(initialFunds float64) models.Portfolio {
	return models.NewPortfolio(initialFunds)
}

// findSide locates one side of a strike in the chain.
func findSide(chain models.ChainSnapshot, strike float64, t models.OptionType) *models.ChainSide {
	for _, row := range chain.Rows {
		if row.Strike == strike {
			return row.Side(t)
		}
	}
	return nil
}
