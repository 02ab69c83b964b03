package models

import "testing"

func TestPortfolioFunds(t *testing.T) {
	pf := NewPortfolio(500000)
	pf.RealizedPnL = 2500
	pf.BlockedMargin = 180000

	if got := pf.TotalFunds(); got != 502500 {
		t.Errorf("TotalFunds = %v, want 502500", got)
	}
	if got := pf.AvailableFunds(); got != 322500 {
		t.Errorf("AvailableFunds = %v, want 322500", got)
	}
}

func TestNextPositionID(t *testing.T) {
	pf := NewPortfolio(500000)
	if got := pf.NextPositionID(); got != 1 {
		t.Errorf("empty portfolio next ID = %d, want 1", got)
	}

	pf.Positions = []Position{{ID: 2}}
	pf.TradeHistory = []TradeHistoryItem{{Position: Position{ID: 5}}}
	if got := pf.NextPositionID(); got != 6 {
		t.Errorf("next ID = %d, want 6 (closed trades keep their numbers)", got)
	}
}

func TestFindPosition(t *testing.T) {
	pf := NewPortfolio(500000)
	pf.Positions = []Position{{ID: 1, Strike: 22500}, {ID: 3, Strike: 22000}}

	pos, ok := pf.FindPosition(3)
	if !ok || pos.Strike != 22000 {
		t.Errorf("FindPosition(3) = %+v, %v", pos, ok)
	}
	if _, ok := pf.FindPosition(2); ok {
		t.Error("FindPosition(2) must miss")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	pf := NewPortfolio(500000)
	pf.Positions = []Position{{ID: 1, Strike: 22500}}
	pf.TradeHistory = []TradeHistoryItem{{Position: Position{ID: 2}}}

	clone := pf.Clone()
	clone.Positions[0].Strike = 99999
	clone.TradeHistory[0].ID = 42
	clone.Positions = append(clone.Positions, Position{ID: 7})

	if pf.Positions[0].Strike != 22500 {
		t.Error("clone aliases the positions slice")
	}
	if pf.TradeHistory[0].ID != 2 {
		t.Error("clone aliases the history slice")
	}
	if len(pf.Positions) != 1 {
		t.Error("appending to the clone grew the original")
	}
}

func TestOppositeAction(t *testing.T) {
	if ActionBuy.Opposite() != ActionSell || ActionSell.Opposite() != ActionBuy {
		t.Error("Opposite must flip the action")
	}
}

func TestRecommendationMatches(t *testing.T) {
	if !ConsiderCE.Matches(CE) || ConsiderCE.Matches(PE) {
		t.Error("ConsiderCE must match CE only")
	}
	if !ConsiderPE.Matches(PE) || ConsiderPE.Matches(CE) {
		t.Error("ConsiderPE must match PE only")
	}
	if Mixed.Matches(CE) || Mixed.Matches(PE) {
		t.Error("Mixed matches neither side")
	}
}
