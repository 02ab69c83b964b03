package cli

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vizzzzk/nifty-options-bot/internal/config"
	"github.com/vizzzzk/nifty-options-bot/internal/costs"
	"github.com/vizzzzk/nifty-options-bot/internal/engine"
	"github.com/vizzzzk/nifty-options-bot/internal/ledger"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
	"github.com/vizzzzk/nifty-options-bot/internal/store"
	"github.com/vizzzzk/nifty-options-bot/internal/upstox"
)

// fakeStore records which persistence path dispatch uses.
type fakeStore struct {
	pf models.Portfolio
	ok bool

	loadCalls   int
	saveCalls   int
	updateCalls int
	logged      []models.TradeHistoryItem
}

func (s *fakeStore) Load(ctx context.Context, userID string) (models.Portfolio, bool, error) {
	s.loadCalls++
	return s.pf, s.ok, nil
}

func (s *fakeStore) Save(ctx context.Context, userID string, pf models.Portfolio) error {
	s.saveCalls++
	s.pf, s.ok = pf, true
	return nil
}

func (s *fakeStore) Update(ctx context.Context, userID string, fn func(models.Portfolio) (models.Portfolio, error)) (models.Portfolio, error) {
	s.updateCalls++
	next, err := fn(s.pf)
	if err != nil {
		return models.Portfolio{}, err
	}
	s.pf, s.ok = next, true
	return next, nil
}

func (s *fakeStore) LogClosedTrade(ctx context.Context, userID string, item models.TradeHistoryItem) error {
	s.logged = append(s.logged, item)
	return nil
}

func (s *fakeStore) ClosedTrades(ctx context.Context, userID string, limit int) ([]models.TradeHistoryItem, error) {
	return s.logged, nil
}

func (s *fakeStore) Close() error { return nil }

var _ store.PortfolioStore = (*fakeStore)(nil)

func testApp(st store.PortfolioStore) *App {
	mock := &upstox.MockClient{}
	schedule := costs.DefaultSchedule(75)
	cfg := &config.Config{}
	cfg.Trading.InitialFunds = 500000
	cfg.Trading.LotSize = 75

	router := engine.NewRouter(engine.Config{
		Market:       mock,
		Auth:         mock,
		Ledger:       ledger.New(mock, schedule, zerolog.Nop()),
		Schedule:     schedule,
		InitialFunds: 500000,
		Logger:       zerolog.Nop(),
	})
	return &App{Config: cfg, Logger: zerolog.Nop(), Store: st, Router: router}
}

func TestDispatchPersistsThroughUpdate(t *testing.T) {
	st := &fakeStore{}
	app := testApp(st)

	if _, err := app.dispatch(context.Background(), "help"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if st.loadCalls != 1 {
		t.Errorf("load calls = %d, want 1", st.loadCalls)
	}
	if st.updateCalls != 1 {
		t.Errorf("update calls = %d, want 1 (persistence goes through the transactional path)", st.updateCalls)
	}
	if st.saveCalls != 0 {
		t.Errorf("save calls = %d, want 0", st.saveCalls)
	}
	// A first-time user gets the configured initial funds persisted.
	if st.pf.InitialFunds != 500000 {
		t.Errorf("persisted initial funds = %v, want 500000", st.pf.InitialFunds)
	}
	if len(st.logged) != 0 {
		t.Error("help must not touch the closed-trade log")
	}
}

func TestDispatchRoundTripsStoredPortfolio(t *testing.T) {
	stored := models.NewPortfolio(500000)
	stored.RealizedPnL = 123
	stored.TotalTrades = 2
	st := &fakeStore{pf: stored, ok: true}
	app := testApp(st)

	if _, err := app.dispatch(context.Background(), "help"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if st.pf.RealizedPnL != 123 || st.pf.TotalTrades != 2 {
		t.Errorf("stored portfolio was not round-tripped: %+v", st.pf)
	}
}

func TestDispatchResetPersistsFreshPortfolio(t *testing.T) {
	stored := models.NewPortfolio(500000)
	stored.RealizedPnL = -4000
	stored.TotalTrades = 9
	st := &fakeStore{pf: stored, ok: true}
	app := testApp(st)

	if _, err := app.dispatch(context.Background(), "/reset"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if st.updateCalls != 1 {
		t.Errorf("update calls = %d, want 1", st.updateCalls)
	}
	if st.pf.RealizedPnL != 0 || st.pf.TotalTrades != 0 {
		t.Errorf("reset portfolio was not persisted: %+v", st.pf)
	}
	if st.pf.InitialFunds != 500000 {
		t.Errorf("initial funds = %v, want 500000", st.pf.InitialFunds)
	}
}
