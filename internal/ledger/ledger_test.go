package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vizzzzk/nifty-options-bot/internal/costs"
	apperrors "github.com/vizzzzk/nifty-options-bot/internal/errors"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
	"github.com/vizzzzk/nifty-options-bot/internal/upstox"
	"github.com/vizzzzk/nifty-options-bot/pkg/utils"
)

const testExpiry = "2026-09-03"

// Friday 2026-08-28 10:30 IST, inside market hours.
func openClock() time.Time {
	return time.Date(2026, 8, 28, 10, 30, 0, 0, utils.IndiaLocation)
}

// Saturday 2026-08-29 11:00 IST.
func closedClock() time.Time {
	return time.Date(2026, 8, 29, 11, 0, 0, 0, utils.IndiaLocation)
}

func testMarket() *upstox.MockClient {
	return &upstox.MockClient{
		Chains: map[string]models.ChainSnapshot{
			testExpiry: {
				Expiry:    testExpiry,
				SpotPrice: 22500,
				Rows: []models.ChainRow{
					{
						Strike: 22500,
						Call: &models.ChainSide{
							LTP: 150, Delta: 0.20, IV: 18,
							Volume: 5000, OI: 50000, InstrumentKey: "NSE_FO|CE1",
						},
					},
					{
						Strike: 22000,
						Put: &models.ChainSide{
							LTP: 120, Delta: -0.18, IV: 17,
							Volume: 4000, OI: 40000, InstrumentKey: "NSE_FO|PE1",
						},
					},
				},
			},
		},
		Quotes: map[string]float64{
			"NSE_FO|CE1": 100,
			"NSE_FO|PE1": 95,
		},
	}
}

func testLedger(market upstox.MarketDataClient, now func() time.Time) *Ledger {
	return New(market, costs.DefaultSchedule(75), zerolog.Nop()).WithClock(now)
}

func activePortfolio() models.Portfolio {
	pf := models.NewPortfolio(500000)
	pf.LastActiveExpiry = testExpiry
	return pf
}

func sellRequest() OpenRequest {
	return OpenRequest{Type: models.CE, Strike: 22500, Action: models.ActionSell, Lots: 1, Price: 150}
}

func TestOpenPosition(t *testing.T) {
	l := testLedger(testMarket(), openClock)
	pf := activePortfolio()

	next, result, err := l.OpenPosition(context.Background(), pf, "token", sellRequest())
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}

	// Margin: 22500 * 75 * 0.10 + 150*75 = 168750 + 11250 = 180000
	if result.Margin != 180000 {
		t.Errorf("margin = %v, want 180000", result.Margin)
	}
	if result.Premium != 11250 {
		t.Errorf("premium = %v, want 11250", result.Premium)
	}
	if result.AvailableAfter != 320000 {
		t.Errorf("available = %v, want 320000", result.AvailableAfter)
	}

	pos := result.Position
	if pos.ID != 1 {
		t.Errorf("position ID = %d, want 1", pos.ID)
	}
	if pos.StopLoss != 300 {
		t.Errorf("stop loss = %v, want 300 (2x entry for a short leg)", pos.StopLoss)
	}
	if pos.InstrumentKey != "NSE_FO|CE1" {
		t.Errorf("instrument key = %q", pos.InstrumentKey)
	}
	if pos.EntryDelta == nil || *pos.EntryDelta != 0.20 {
		t.Errorf("entry delta = %v, want 0.20", pos.EntryDelta)
	}
	if !pos.EntryTime.Equal(openClock()) {
		t.Errorf("entry time = %v", pos.EntryTime)
	}

	if len(next.Positions) != 1 {
		t.Fatalf("expected 1 open position, got %d", len(next.Positions))
	}
	if next.BlockedMargin != 180000 {
		t.Errorf("blocked margin = %v, want 180000", next.BlockedMargin)
	}
	// The input portfolio is untouched.
	if len(pf.Positions) != 0 || pf.BlockedMargin != 0 {
		t.Error("input portfolio was mutated")
	}
}

func TestOpenPositionBuyStopLoss(t *testing.T) {
	l := testLedger(testMarket(), openClock)
	pf := activePortfolio()

	req := OpenRequest{Type: models.PE, Strike: 22000, Action: models.ActionBuy, Lots: 1, Price: 120}
	_, result, err := l.OpenPosition(context.Background(), pf, "token", req)
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}
	if result.Position.StopLoss != 60 {
		t.Errorf("stop loss = %v, want 60 (0.5x entry for a long leg)", result.Position.StopLoss)
	}
}

func TestOpenPositionPreconditions(t *testing.T) {
	t.Run("no active expiry", func(t *testing.T) {
		l := testLedger(testMarket(), openClock)
		pf := models.NewPortfolio(500000)
		_, _, err := l.OpenPosition(context.Background(), pf, "token", sellRequest())
		if !errors.Is(err, apperrors.ErrNoActiveExpiry) {
			t.Errorf("err = %v, want ErrNoActiveExpiry", err)
		}
	})

	t.Run("market closed", func(t *testing.T) {
		l := testLedger(testMarket(), closedClock)
		_, _, err := l.OpenPosition(context.Background(), activePortfolio(), "token", sellRequest())
		if !errors.Is(err, apperrors.ErrMarketClosed) {
			t.Errorf("err = %v, want ErrMarketClosed", err)
		}
	})

	t.Run("instrument not found", func(t *testing.T) {
		l := testLedger(testMarket(), openClock)
		req := sellRequest()
		req.Strike = 99999
		_, _, err := l.OpenPosition(context.Background(), activePortfolio(), "token", req)
		if !errors.Is(err, apperrors.ErrInstrumentNotFound) {
			t.Errorf("err = %v, want ErrInstrumentNotFound", err)
		}
	})

	t.Run("insufficient funds", func(t *testing.T) {
		l := testLedger(testMarket(), openClock)
		pf := models.NewPortfolio(100000) // margin needs 180000
		pf.LastActiveExpiry = testExpiry
		_, _, err := l.OpenPosition(context.Background(), pf, "token", sellRequest())
		if !errors.Is(err, apperrors.ErrInsufficientFunds) {
			t.Errorf("err = %v, want ErrInsufficientFunds", err)
		}
	})

	t.Run("invalid lots", func(t *testing.T) {
		l := testLedger(testMarket(), openClock)
		req := sellRequest()
		req.Lots = 0
		_, _, err := l.OpenPosition(context.Background(), activePortfolio(), "token", req)
		var verr *apperrors.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("err = %v, want ValidationError", err)
		}
	})

	t.Run("unauthorized token", func(t *testing.T) {
		l := testLedger(testMarket(), openClock)
		_, _, err := l.OpenPosition(context.Background(), activePortfolio(), "", sellRequest())
		if !errors.Is(err, apperrors.ErrUnauthorized) {
			t.Errorf("err = %v, want ErrUnauthorized", err)
		}
	})
}

func TestPositionIDsNeverReused(t *testing.T) {
	l := testLedger(testMarket(), openClock)
	pf := activePortfolio()
	pf.TradeHistory = append(pf.TradeHistory, models.TradeHistoryItem{
		Position: models.Position{ID: 5},
	})

	_, result, err := l.OpenPosition(context.Background(), pf, "token", sellRequest())
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}
	if result.Position.ID != 6 {
		t.Errorf("position ID = %d, want 6 (history high-water mark + 1)", result.Position.ID)
	}
}

func TestClosePosition(t *testing.T) {
	market := testMarket()
	l := testLedger(market, openClock)
	ctx := context.Background()

	pf, _, err := l.OpenPosition(ctx, activePortfolio(), "token", sellRequest())
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}
	realizedBefore := pf.RealizedPnL

	// Exit quote is 100: gross = (150-100)*75 = 3750
	next, result, err := l.ClosePosition(ctx, pf, "token", 1)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}

	item := result.Item
	if item.GrossPnL != 3750 {
		t.Errorf("gross = %v, want 3750", item.GrossPnL)
	}
	// Entry (SELL 150): 37.28. Exit (BUY 100): 28.03.
	if item.TotalCosts != 65.31 {
		t.Errorf("total costs = %v, want 65.31", item.TotalCosts)
	}
	if item.NetPnL != 3684.69 {
		t.Errorf("net = %v, want 3684.69", item.NetPnL)
	}
	if item.ExitDelta == nil || *item.ExitDelta != 0.20 {
		t.Errorf("exit delta = %v, want 0.20", item.ExitDelta)
	}

	if len(next.Positions) != 0 {
		t.Error("position must leave the open set")
	}
	if len(next.TradeHistory) != 1 {
		t.Fatal("trade must enter history")
	}
	if next.BlockedMargin != 0 {
		t.Errorf("blocked margin = %v, want 0", next.BlockedMargin)
	}
	if got := utils.Round2(realizedBefore + item.NetPnL); next.RealizedPnL != got {
		t.Errorf("realized = %v, want %v (conservation)", next.RealizedPnL, got)
	}
	if next.TotalTrades != 1 || next.WinningTrades != 1 {
		t.Errorf("trade counters = %d/%d, want 1/1", next.TotalTrades, next.WinningTrades)
	}
}

func TestClosePositionFlatLosesOnlyCosts(t *testing.T) {
	market := testMarket()
	market.Quotes["NSE_FO|CE1"] = 150 // exit exactly at entry
	l := testLedger(market, openClock)
	ctx := context.Background()

	pf, _, err := l.OpenPosition(ctx, activePortfolio(), "token", sellRequest())
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}

	next, result, err := l.ClosePosition(ctx, pf, "token", 1)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}

	if result.Item.GrossPnL != 0 {
		t.Errorf("gross on a flat close = %v, want 0", result.Item.GrossPnL)
	}
	if result.Item.NetPnL != -result.Item.TotalCosts {
		t.Errorf("net = %v, want -%v (flat close loses exactly the costs)",
			result.Item.NetPnL, result.Item.TotalCosts)
	}
	if next.WinningTrades != 0 {
		t.Error("a flat close is not a winning trade")
	}
}

func TestClosePositionErrors(t *testing.T) {
	t.Run("unknown id", func(t *testing.T) {
		l := testLedger(testMarket(), openClock)
		_, _, err := l.ClosePosition(context.Background(), activePortfolio(), "token", 42)
		if !errors.Is(err, apperrors.ErrPositionNotFound) {
			t.Errorf("err = %v, want ErrPositionNotFound", err)
		}
	})

	t.Run("quote unavailable", func(t *testing.T) {
		market := testMarket()
		l := testLedger(market, openClock)
		ctx := context.Background()

		pf, _, err := l.OpenPosition(ctx, activePortfolio(), "token", sellRequest())
		if err != nil {
			t.Fatalf("OpenPosition failed: %v", err)
		}
		delete(market.Quotes, "NSE_FO|CE1")

		before := pf.Clone()
		got, _, err := l.ClosePosition(ctx, pf, "token", 1)
		if !errors.Is(err, apperrors.ErrQuoteUnavailable) {
			t.Errorf("err = %v, want ErrQuoteUnavailable", err)
		}
		if len(got.Positions) != len(before.Positions) {
			t.Error("failed close must not change the portfolio")
		}
	})
}

func TestClosePositionAllowedAfterHours(t *testing.T) {
	market := testMarket()
	l := testLedger(market, openClock)
	ctx := context.Background()

	pf, _, err := l.OpenPosition(ctx, activePortfolio(), "token", sellRequest())
	if err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}

	// Closing is not gated on market hours.
	l.WithClock(closedClock)
	if _, _, err := l.ClosePosition(ctx, pf, "token", 1); err != nil {
		t.Errorf("after-hours close failed: %v", err)
	}
}

func TestMarkToMarket(t *testing.T) {
	market := testMarket()
	l := testLedger(market, openClock)
	ctx := context.Background()

	pf := activePortfolio()
	pf.Positions = []models.Position{
		{ID: 1, Type: models.CE, Strike: 22500, Action: models.ActionSell, Lots: 1,
			EntryPrice: 150, InstrumentKey: "NSE_FO|CE1"},
		{ID: 2, Type: models.PE, Strike: 22000, Action: models.ActionSell, Lots: 1,
			EntryPrice: 120, InstrumentKey: "NSE_FO|MISSING"},
	}

	report := l.MarkToMarket(ctx, pf, "token")
	if len(report.Positions) != 2 {
		t.Fatalf("expected 2 marks, got %d", len(report.Positions))
	}

	first := report.Positions[0]
	if !first.Available {
		t.Fatal("first mark must be available")
	}
	// (150 - 100) * 75 = 3750 unrealized on the short call
	if first.UnrealizedPnL != 3750 {
		t.Errorf("unrealized = %v, want 3750", first.UnrealizedPnL)
	}

	second := report.Positions[1]
	if second.Available {
		t.Error("missing quote must degrade to unavailable")
	}

	if report.TotalUnrealized != 3750 {
		t.Errorf("total unrealized = %v, want 3750 (available marks only)", report.TotalUnrealized)
	}
}

func TestMarkToMarketManyPositions(t *testing.T) {
	market := testMarket()
	l := testLedger(market, openClock)

	// Enough positions that the quote fan-out actually runs goroutines in
	// parallel; the race detector checks the shared mock counters.
	pf := activePortfolio()
	for i := 1; i <= 16; i++ {
		key := fmt.Sprintf("NSE_FO|CE%d", i)
		market.Quotes[key] = 100
		pf.Positions = append(pf.Positions, models.Position{
			ID: i, Type: models.CE, Strike: 22500, Action: models.ActionSell,
			Lots: 1, EntryPrice: 150, InstrumentKey: key,
		})
	}

	report := l.MarkToMarket(context.Background(), pf, "token")
	if len(report.Positions) != 16 {
		t.Fatalf("expected 16 marks, got %d", len(report.Positions))
	}
	if market.QuoteCalls != 16 {
		t.Errorf("quote calls = %d, want 16", market.QuoteCalls)
	}
	// 16 * (150-100) * 75
	if report.TotalUnrealized != 60000 {
		t.Errorf("total unrealized = %v, want 60000", report.TotalUnrealized)
	}
}

func TestReset(t *testing.T) {
	l := testLedger(testMarket(), openClock)

	pf := activePortfolio()
	pf.RealizedPnL = 1234
	pf.BlockedMargin = 180000
	pf.TotalTrades = 3

	next := l.Reset(500000)
	if next.InitialFunds != 500000 {
		t.Errorf("initial funds = %v", next.InitialFunds)
	}
	if next.RealizedPnL != 0 || next.BlockedMargin != 0 || next.TotalTrades != 0 {
		t.Error("reset must zero all counters")
	}
	if len(next.Positions) != 0 || len(next.TradeHistory) != 0 {
		t.Error("reset must drop positions and history")
	}
	if next.LastActiveExpiry != "" {
		t.Error("reset must clear the active expiry")
	}
}
