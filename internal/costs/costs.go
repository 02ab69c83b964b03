// Package costs computes transaction costs and margin for NIFTY option legs.
package costs

import (
	"github.com/vizzzzk/nifty-options-bot/internal/models"
	"github.com/vizzzzk/nifty-options-bot/pkg/utils"
)

// Schedule holds the charge rates applied to a single option leg.
// Rates follow the NSE options schedule for a discount broker; they are
// close enough for paper-trade accounting, not a statement of statutory fees.
type Schedule struct {
	LotSize         int     // units per lot
	BrokeragePerLot float64 // flat, per lot per side
	STTRate         float64 // on premium, sell side only
	TxnChargeRate   float64 // on premium, both sides
	GSTRate         float64 // on brokerage + transaction charge
	SEBIFeeRate     float64 // on premium
}

// DefaultSchedule returns the NIFTY schedule for the given lot size.
func DefaultSchedule(lotSize int) Schedule {
	return Schedule{
		LotSize:         lotSize,
		BrokeragePerLot: 20.0,
		STTRate:         0.000625, // 0.0625% of sell-side premium
		TxnChargeRate:   0.0005,   // 0.05% of premium
		GSTRate:         0.18,
		SEBIFeeRate:     0.000001, // Rs. 10 per crore
	}
}

// Breakdown itemizes the charges on one leg.
type Breakdown struct {
	TotalPremium float64 `json:"totalPremium"`
	Brokerage    float64 `json:"brokerage"`
	STT          float64 `json:"stt"`
	TxnCharge    float64 `json:"txnCharge"`
	GST          float64 `json:"gst"`
	SEBIFee      float64 `json:"sebiFee"`
	Total        float64 `json:"total"`
}

// Costs computes the transaction costs for one leg of lots at premiumPerUnit.
// STT applies only when the leg sells premium.
func (s Schedule) Costs(premiumPerUnit float64, lots int, action models.TradeAction) Breakdown {
	totalPremium := premiumPerUnit * float64(lots) * float64(s.LotSize)

	brokerage := s.BrokeragePerLot * float64(lots)
	var stt float64
	if action == models.ActionSell {
		stt = totalPremium * s.STTRate
	}
	txnCharge := totalPremium * s.TxnChargeRate
	gst := (brokerage + txnCharge) * s.GSTRate
	sebiFee := totalPremium * s.SEBIFeeRate

	return Breakdown{
		TotalPremium: utils.Round2(totalPremium),
		Brokerage:    utils.Round2(brokerage),
		STT:          utils.Round2(stt),
		TxnCharge:    utils.Round2(txnCharge),
		GST:          utils.Round2(gst),
		SEBIFee:      utils.Round2(sebiFee),
		Total:        utils.Round2(brokerage + stt + txnCharge + gst + sebiFee),
	}
}

// RoundTripCosts sums the charges for opening a leg and closing it with the
// opposite action.
func (s Schedule) RoundTripCosts(entryPrice, exitPrice float64, lots int, action models.TradeAction) float64 {
	entry := s.Costs(entryPrice, lots, action)
	exit := s.Costs(exitPrice, lots, action.Opposite())
	return utils.Round2(entry.Total + exit.Total)
}

// Margin approximates the margin blocked for a short option leg:
// 10% of the spot notional for one lot plus the premium. This is an
// approximation, not an exchange SPAN model.
func (s Schedule) Margin(spotPrice, premium float64) float64 {
	return utils.Round2(spotPrice*float64(s.LotSize)*0.10 + premium)
}
