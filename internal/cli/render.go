package cli

import (
	"fmt"

	"github.com/vizzzzk/nifty-options-bot/internal/engine"
	"github.com/vizzzzk/nifty-options-bot/internal/models"
	"github.com/vizzzzk/nifty-options-bot/pkg/utils"
)

// renderResponse prints a router response to the terminal. JSON mode dumps
// the payload as-is.
func renderResponse(output *Output, resp engine.Response) error {
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"kind":    resp.Kind(),
			"payload": resp,
		})
	}

	switch r := resp.(type) {
	case engine.AnalysisResponse:
		renderAnalysis(output, r)
	case engine.ExpiriesResponse:
		renderExpiries(output, r)
	case engine.PaperTradeResponse:
		output.Println(r.Message)
	case engine.PortfolioResponse:
		output.Println(r.Message)
	case engine.ClosePositionResponse:
		output.Println(r.Message)
	case engine.ResetResponse:
		output.Success(r.Message)
	case engine.ErrorResponse:
		output.Error(r.Message)
		if r.AuthURL != "" {
			output.Println()
			output.Dim("Authorize here: %s", r.AuthURL)
		}
	default:
		output.Printf("%+v\n", resp)
	}
	return nil
}

func renderExpiries(output *Output, r engine.ExpiriesResponse) {
	output.Bold("Available Expiries")
	output.Println()
	table := NewTable(output, "#", "Expiry", "Type", "DTE")
	for i, exp := range r.Expiries {
		kind := "Weekly"
		if exp.IsMonthly {
			kind = "Monthly"
		}
		table.AddRow(
			fmt.Sprintf("%d", i+1),
			exp.Value,
			kind,
			fmt.Sprintf("%d", exp.DTE),
		)
	}
	table.Render()
	output.Println()
	output.Dim("Analyze one with: exp:<date>  (e.g. exp:%s)", firstExpiry(r.Expiries))
}

func firstExpiry(exps []models.ExpiryDate) string {
	if len(exps) == 0 {
		return "2025-01-30"
	}
	return exps[0].Value
}

func renderAnalysis(output *Output, r engine.AnalysisResponse) {
	output.Bold("NIFTY Analysis — %s (DTE: %d)", r.Expiry, r.DTE)
	output.Printf("Spot: %.2f", r.SpotPrice)
	if r.VIX != nil {
		output.Printf("   VIX: %.2f", *r.VIX)
	}
	if r.MaxPain != nil {
		output.Printf("   Max Pain: %.0f", *r.MaxPain)
	}
	output.Println()
	output.Dim("Snapshot at %s IST", r.Timestamp)
	output.Println()

	ma := r.MarketAnalysis
	sentiment := string(ma.Sentiment)
	switch ma.Sentiment {
	case models.SentimentBullish:
		sentiment = output.Green(sentiment)
	case models.SentimentBearish:
		sentiment = output.Red(sentiment)
	default:
		sentiment = output.Yellow(sentiment)
	}
	output.Printf("Sentiment: %s (%s confidence)\n", sentiment, ma.Confidence)
	output.Printf("PCR (OI): %.3f   PCR (Vol): %.3f\n", ma.PCROI, ma.PCRVolume)
	output.Println(ma.Interpretation)
	output.Dim("%s", ma.TradingBias)
	output.Println()

	if len(r.Opportunities) > 0 {
		output.Bold("Top Opportunities")
		renderOpportunityTable(output, r.Opportunities)
		output.Println()
	}
	if len(r.QualifiedCE) > 0 {
		output.Bold("Qualified CEs (delta 0.15-0.25)")
		renderOpportunityTable(output, r.QualifiedCE)
		output.Println()
	}
	if len(r.QualifiedPE) > 0 {
		output.Bold("Qualified PEs (delta 0.15-0.25)")
		renderOpportunityTable(output, r.QualifiedPE)
		output.Println()
	}

	if r.Recommendation != nil {
		output.Bold("Recommended Trade")
		output.Println(r.Recommendation.Reason)
		output.Info("  %s", r.Recommendation.TradeCommand)
	} else {
		output.Warning("No qualified opportunities in the delta band.")
	}
}

func renderOpportunityTable(output *Output, opps []models.Opportunity) {
	table := NewTable(output, "Strike", "Type", "LTP", "Delta", "IV", "Liquidity", "Score")
	for _, opp := range opps {
		table.AddRow(
			fmt.Sprintf("%.0f", opp.Strike),
			string(opp.Type),
			utils.FormatIndianCurrency(opp.LTP),
			fmt.Sprintf("%.3f", opp.Delta),
			fmt.Sprintf("%.1f%%", opp.IV),
			fmt.Sprintf("%s (%.1f)", opp.Liquidity.Grade, opp.Liquidity.Score),
			fmt.Sprintf("%.1f", opp.TotalScore),
		)
	}
	table.Render()
}
