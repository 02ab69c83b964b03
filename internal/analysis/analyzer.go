// Package analysis turns option-chain snapshots into ranked trade opportunities.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vizzzzk/nifty-options-bot/internal/models"
	"github.com/vizzzzk/nifty-options-bot/pkg/utils"
)

// Qualification band: short-delta candidates between 0.15 and 0.25, with the
// delta score peaking at 0.20.
const (
	deltaBandLow    = 0.15
	deltaBandHigh   = 0.25
	deltaBandCenter = 0.20
	deltaBandWidth  = 0.05

	alignmentBonus = 15.0
)

// LiquidityScore grades how tradeable a strike is from its volume and open
// interest. The score is bounded to [0, 20]: up to 10 points per input.
func LiquidityScore(volume, oi int64) models.Liquidity {
	volumeScore := math.Min(float64(volume)/1000, 10)
	oiScore := math.Min(float64(oi)/10000, 10)
	score := utils.Round1(volumeScore + oiScore)

	grade := models.LiquidityPoor
	switch {
	case score >= 15:
		grade = models.LiquidityExcellent
	case score >= 10:
		grade = models.LiquidityGood
	case score >= 5:
		grade = models.LiquidityFair
	}

	return models.Liquidity{Score: score, Grade: grade}
}

// AnalyzeSentiment derives the market read from put/call ratios over the
// whole chain. A zero call-side aggregate yields a zero ratio rather than a
// division by zero.
func AnalyzeSentiment(chain models.ChainSnapshot) models.MarketAnalysis {
	var callOI, putOI, callVolume, putVolume int64

	for _, row := range chain.Rows {
		if row.Call != nil {
			callOI += row.Call.OI
			callVolume += row.Call.Volume
		}
		if row.Put != nil {
			putOI += row.Put.OI
			putVolume += row.Put.Volume
		}
	}

	var pcrOI, pcrVolume float64
	if callOI > 0 {
		pcrOI = round3(float64(putOI) / float64(callOI))
	}
	if callVolume > 0 {
		pcrVolume = round3(float64(putVolume) / float64(callVolume))
	}

	weighted := pcrOI*0.7 + pcrVolume*0.3

	analysis := models.MarketAnalysis{
		Sentiment:      models.SentimentNeutral,
		Recommendation: models.Mixed,
		Confidence:     models.ConfidenceLow,
		PCROI:          pcrOI,
		PCRVolume:      pcrVolume,
		Interpretation: "Neutral market sentiment detected.",
		TradingBias:    "Focus on non-directional strategies.",
	}

	switch {
	case weighted > 1.3:
		analysis.Sentiment = models.SentimentBearish
		analysis.Recommendation = models.ConsiderPE
		analysis.Confidence = models.ConfidenceMedium
		if weighted > 1.7 {
			analysis.Confidence = models.ConfidenceHigh
		}
		analysis.Interpretation = "🐻 Bearish (More Put activity - expect downward pressure)"
		analysis.TradingBias = "Focus on Bear Call Spreads or buying Puts."
	case weighted < 0.8:
		analysis.Sentiment = models.SentimentBullish
		analysis.Recommendation = models.ConsiderCE
		analysis.Confidence = models.ConfidenceMedium
		if weighted < 0.6 {
			analysis.Confidence = models.ConfidenceHigh
		}
		analysis.Interpretation = "🐂 Bullish (More Call activity - expect upward pressure)"
		analysis.TradingBias = "Focus on Bull Put Spreads or buying CEs."
	}

	return analysis
}

// Opportunities is the result of scanning a chain for qualified trades.
type Opportunities struct {
	// Top holds the best-scoring CE and PE, descending by score (0-2 items).
	Top []models.Opportunity
	// QualifiedCE and QualifiedPE hold every qualified option per side,
	// ascending by strike.
	QualifiedCE []models.Opportunity
	QualifiedPE []models.Opportunity
	// Recommendation is the single suggested trade, nil when nothing qualified.
	Recommendation *models.TradeRecommendation
}

// FindOpportunities scans every side of every strike with a traded price,
// qualifies those inside the delta band, and scores them.
func FindOpportunities(chain models.ChainSnapshot, analysis models.MarketAnalysis) Opportunities {
	var qualified []models.Opportunity

	for _, row := range chain.Rows {
		for _, optType := range []models.OptionType{models.CE, models.PE} {
			side := row.Side(optType)
			if side == nil || side.LTP <= 0 {
				continue
			}
			if opp, ok := scoreOption(row.Strike, optType, side, analysis); ok {
				qualified = append(qualified, opp)
			}
		}
	}

	result := Opportunities{}

	ranked := make([]models.Opportunity, len(qualified))
	copy(ranked, qualified)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})

	var topCE, topPE *models.Opportunity
	for i := range ranked {
		switch {
		case ranked[i].Type == models.CE && topCE == nil:
			topCE = &ranked[i]
		case ranked[i].Type == models.PE && topPE == nil:
			topPE = &ranked[i]
		}
	}
	if topCE != nil {
		result.Top = append(result.Top, *topCE)
	}
	if topPE != nil {
		result.Top = append(result.Top, *topPE)
	}
	sort.SliceStable(result.Top, func(i, j int) bool {
		return result.Top[i].TotalScore > result.Top[j].TotalScore
	})

	for _, opp := range qualified {
		if opp.Type == models.CE {
			result.QualifiedCE = append(result.QualifiedCE, opp)
		} else {
			result.QualifiedPE = append(result.QualifiedPE, opp)
		}
	}
	sort.SliceStable(result.QualifiedCE, func(i, j int) bool {
		return result.QualifiedCE[i].Strike < result.QualifiedCE[j].Strike
	})
	sort.SliceStable(result.QualifiedPE, func(i, j int) bool {
		return result.QualifiedPE[i].Strike < result.QualifiedPE[j].Strike
	})

	result.Recommendation = Recommend(topCE, topPE)

	return result
}

// scoreOption qualifies and scores one side of a strike. Options outside the
// delta band do not qualify.
func scoreOption(strike float64, optType models.OptionType, side *models.ChainSide, analysis models.MarketAnalysis) (models.Opportunity, bool) {
	absDelta := math.Abs(side.Delta)
	if absDelta < deltaBandLow || absDelta > deltaBandHigh {
		return models.Opportunity{}, false
	}

	deltaScore := utils.Round1(10 * (1 - math.Min(math.Abs(absDelta-deltaBandCenter)/deltaBandWidth, 1)))
	ivScore := utils.Round1(math.Min(side.IV/3, 10))
	liquidity := LiquidityScore(side.Volume, side.OI)

	var bonus float64
	if analysis.Recommendation.Matches(optType) {
		bonus = alignmentBonus
	}

	breakdown := models.ScoreBreakdown{
		DeltaScore:     deltaScore,
		IVScore:        ivScore,
		LiquidityScore: liquidity.Score,
		AlignmentBonus: bonus,
	}

	return models.Opportunity{
		OptionData: models.OptionData{
			Strike:        strike,
			Delta:         side.Delta,
			IV:            utils.Round1(side.IV),
			LTP:           side.LTP,
			PoP:           utils.Round1((1 - absDelta) * 100),
			Liquidity:     liquidity,
			InstrumentKey: side.InstrumentKey,
		},
		Type:           optType,
		TotalScore:     utils.Round1(deltaScore + ivScore + liquidity.Score + bonus),
		ScoreBreakdown: breakdown,
	}, true
}

// Recommend picks the single best trade between the top CE and PE.
// The suggested action is always SELL 1 lot at the option's last price.
func Recommend(topCE, topPE *models.Opportunity) *models.TradeRecommendation {
	if topCE == nil && topPE == nil {
		return nil
	}

	var best *models.Opportunity
	var reason string

	switch {
	case topCE != nil && topPE != nil:
		if topCE.TotalScore > topPE.TotalScore {
			best = topCE
			reason = fmt.Sprintf("The CE trade has a higher total score (%.1f vs %.1f), suggesting it's the better opportunity based on current market data.",
				topCE.TotalScore, topPE.TotalScore)
		} else {
			best = topPE
			reason = fmt.Sprintf("The PE trade has a higher total score (%.1f vs %.1f), suggesting it's the better opportunity based on current market data.",
				topPE.TotalScore, topCE.TotalScore)
		}
	case topCE != nil:
		best = topCE
		reason = "Only a qualified CE opportunity was found. This is the recommended trade by default."
	default:
		best = topPE
		reason = "Only a qualified PE opportunity was found. This is the recommended trade by default."
	}

	return &models.TradeRecommendation{
		Reason:       reason,
		TradeCommand: fmt.Sprintf("/paper %s %g SELL 1 %.2f", best.Type, best.Strike, best.LTP),
	}
}

// MaxPain returns the strike minimizing aggregate option-writer loss at
// expiry. Ties go to the first strike in ascending order. Returns false for
// an empty chain.
func MaxPain(rows []models.ChainRow) (float64, bool) {
	if len(rows) == 0 {
		return 0, false
	}

	strikes := make([]float64, 0, len(rows))
	for _, row := range rows {
		strikes = append(strikes, row.Strike)
	}
	sort.Float64s(strikes)

	bestStrike := 0.0
	bestLoss := math.Inf(1)

	for _, k := range strikes {
		var loss float64
		for _, row := range rows {
			if row.Put != nil {
				loss += math.Max(0, k-row.Strike) * float64(row.Put.OI)
			}
			if row.Call != nil {
				loss += math.Max(0, row.Strike-k) * float64(row.Call.OI)
			}
		}
		if loss < bestLoss {
			bestLoss = loss
			bestStrike = k
		}
	}

	return bestStrike, true
}

// DaysToExpiry counts whole days from now's midnight to the expiry date,
// both taken in IST.
func DaysToExpiry(expiry string, now time.Time) (int, error) {
	expDate, err := time.ParseInLocation("2006-01-02", expiry, utils.IndiaLocation)
	if err != nil {
		return 0, fmt.Errorf("invalid expiry date %q: %w", expiry, err)
	}
	ist := now.In(utils.IndiaLocation)
	today := time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, utils.IndiaLocation)
	return int(math.Round(expDate.Sub(today).Hours() / 24)), nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
