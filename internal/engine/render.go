package engine

import (
	"fmt"
	"strings"

	"github.com/vizzzzk/nifty-options-bot/internal/ledger"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
	"github.com/vizzzzk/nifty-options-bot/pkg/utils"
)

const helpText = `**NIFTY Options Analysis Bot**

**Core Commands:**
- **start**: Begins the analysis by showing available expiry dates.
- **auth**: Provides instructions on how to get a new access token for the Upstox API.
- **help**: Shows this help message.
- **/paper [CE/PE] [STRIKE] [BUY/SELL] [LOTS] [PRICE]**: Executes a simulated trade.
- **/portfolio**: Shows your current simulated portfolio.
- **/close [POSITION_#]**: Closes an open position from your portfolio.
- **/reset**: Wipes the portfolio and starts over.

**How to use:**
1. Type **auth** to get a link to log into Upstox.
2. After logging in, copy the code from the redirect URL's address bar.
3. Paste the code directly into the chat here.
4. The bot will get an access token and show you the available expiries.
5. Pick an expiry date to get a market analysis and trading opportunities.
6. Use the paper trade commands from the analysis to simulate trades.`

// renderPaperTrade builds the confirmation for an opened position.
func renderPaperTrade(result ledger.OpenResult, lotSize int) string {
	pos := result.Position

	var b strings.Builder
	b.WriteString("**Paper Trade Executed**\n\n")
	fmt.Fprintf(&b, "- **Trade ID:** %d\n", pos.ID)
	fmt.Fprintf(&b, "- **Position:** %s %d lot(s) (%d units)\n", pos.Action, pos.Lots, pos.Lots*lotSize)
	fmt.Fprintf(&b, "- **Option:** %s %.1f\n", pos.Type, pos.Strike)
	fmt.Fprintf(&b, "- **Entry Price:** %s\n", utils.FormatIndianCurrency(pos.EntryPrice))
	fmt.Fprintf(&b, "- **Stop Loss:** %s\n", utils.FormatIndianCurrency(pos.StopLoss))
	fmt.Fprintf(&b, "- **Expiry:** %s\n", pos.Expiry)
	fmt.Fprintf(&b, "- **Premium:** %s\n", utils.FormatIndianCurrency(result.Premium))
	fmt.Fprintf(&b, "- **Est. Margin Blocked:** %s\n", utils.FormatIndianCurrency(result.Margin))
	fmt.Fprintf(&b, "- **Est. Entry Costs:** %s\n", utils.FormatIndianCurrency(result.EntryCosts.Total))
	fmt.Fprintf(&b, "- **Available Funds:** %s", utils.FormatIndianCurrency(result.AvailableAfter))
	return b.String()
}

// renderPortfolio builds the portfolio listing with per-position marks.
func renderPortfolio(pf models.Portfolio, report ledger.MTMReport) string {
	var b strings.Builder
	b.WriteString("**Paper Portfolio**\n\n")
	fmt.Fprintf(&b, "- **Total Funds:** %s\n", utils.FormatIndianCurrency(pf.TotalFunds()))
	fmt.Fprintf(&b, "- **Blocked Margin:** %s\n", utils.FormatIndianCurrency(pf.BlockedMargin))
	fmt.Fprintf(&b, "- **Available Funds:** %s\n", utils.FormatIndianCurrency(pf.AvailableFunds()))
	fmt.Fprintf(&b, "- **Realized P&L:** %s\n", utils.FormatPnL(pf.RealizedPnL))
	if pf.TotalTrades > 0 {
		fmt.Fprintf(&b, "- **Trades:** %d (%d winning)\n", pf.TotalTrades, pf.WinningTrades)
	}
	b.WriteString("\n")

	if len(pf.Positions) == 0 {
		b.WriteString("- **Open Positions:** 0")
		return b.String()
	}

	marks := make(map[int]ledger.PositionMTM, len(report.Positions))
	for _, m := range report.Positions {
		marks[m.Position.ID] = m
	}

	for _, pos := range pf.Positions {
		fmt.Fprintf(&b, "**Position #%d** (%s %d lot)\n", pos.ID, pos.Action, pos.Lots)
		fmt.Fprintf(&b, "- **Option:** %s %.1f\n", pos.Type, pos.Strike)
		fmt.Fprintf(&b, "- **Entry:** %s | **Expiry:** %s\n", utils.FormatIndianCurrency(pos.EntryPrice), pos.Expiry)
		fmt.Fprintf(&b, "- **Margin:** %s\n", utils.FormatIndianCurrency(pos.MarginBlocked))
		if m, ok := marks[pos.ID]; ok && m.Available {
			fmt.Fprintf(&b, "- **LTP:** %s | **Unrealized P&L:** %s\n",
				utils.FormatIndianCurrency(m.CurrentPrice), utils.FormatPnL(m.UnrealizedPnL))
		} else {
			b.WriteString("- **Unrealized P&L:** unavailable\n")
		}
		fmt.Fprintf(&b, "*To close, type: /close %d*\n\n", pos.ID)
	}

	anyMarked := false
	for _, m := range report.Positions {
		if m.Available {
			anyMarked = true
			break
		}
	}
	if anyMarked {
		fmt.Fprintf(&b, "- **Total Unrealized P&L:** %s", utils.FormatPnL(report.TotalUnrealized))
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderClosedTrade builds the confirmation for a closed position.
func renderClosedTrade(pf models.Portfolio, result ledger.CloseResult) string {
	item := result.Item

	outcome := "Loss"
	if item.NetPnL > 0 {
		outcome = "Profit"
	}

	var b strings.Builder
	b.WriteString("**Position Closed Successfully**\n\n")
	fmt.Fprintf(&b, "- **Trade ID:** %d\n", item.ID)
	fmt.Fprintf(&b, "- **Position:** %s %d lot(s)\n", item.Action, item.Lots)
	fmt.Fprintf(&b, "- **Option:** %s %.1f\n", item.Type, item.Strike)
	fmt.Fprintf(&b, "- **Entry:** %s\n", utils.FormatIndianCurrency(item.EntryPrice))
	fmt.Fprintf(&b, "- **Exit:** %s (Current LTP)\n", utils.FormatIndianCurrency(item.ExitPrice))
	fmt.Fprintf(&b, "- **Gross P&L:** %s\n", utils.FormatPnL(item.GrossPnL))
	fmt.Fprintf(&b, "- **Costs:** %s (brokerage %s, STT %s, txn %s, GST %s, SEBI %s)\n",
		utils.FormatIndianCurrency(item.TotalCosts),
		utils.FormatIndianCurrency(result.EntryCosts.Brokerage+result.ExitCosts.Brokerage),
		utils.FormatIndianCurrency(result.EntryCosts.STT+result.ExitCosts.STT),
		utils.FormatIndianCurrency(result.EntryCosts.TxnCharge+result.ExitCosts.TxnCharge),
		utils.FormatIndianCurrency(result.EntryCosts.GST+result.ExitCosts.GST),
		utils.FormatIndianCurrency(result.EntryCosts.SEBIFee+result.ExitCosts.SEBIFee))
	fmt.Fprintf(&b, "- **Net P&L:** %s (%s)\n\n", utils.FormatPnL(item.NetPnL), outcome)
	fmt.Fprintf(&b, "- **Total Funds:** %s\n", utils.FormatIndianCurrency(pf.TotalFunds()))
	fmt.Fprintf(&b, "- **Realized P&L:** %s", utils.FormatPnL(pf.RealizedPnL))
	return b.String()
}
