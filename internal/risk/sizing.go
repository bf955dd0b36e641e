package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	rerrors "github.com/ducminhle1904/crypto-risk-engine/internal/errors"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// SizingInput is everything the position sizer needs for one trade
type SizingInput struct {
	AccountBalance float64
	EntryPrice     float64
	StopPrice      float64
	Volatility     []types.OHLCV       // used only when volatility adjustment is enabled
	Correlation    *CorrelationContext // nil skips correlation dampening
}

// SizingResult is the sized quantity and the factors that shaped it
type SizingResult struct {
	Quantity          float64
	RiskBudget        float64
	BaseQuantity      float64 // riskBudget / priceRisk before the position-size cap
	CappedBySize      bool
	VolatilityFactor  float64
	CorrelationFactor float64
}

// ComputeSize returns the recommended order quantity for a trade risking at most
// maxAccountRiskPct of the balance, capped by maxPositionSizePct of the balance.
// It fails only for a malformed entry/stop pair and never returns NaN or Inf.
func ComputeSize(params RiskParameters, in SizingInput) (SizingResult, error) {
	if !isPositiveFinite(in.EntryPrice) {
		return SizingResult{}, rerrors.NewInvalidInputError("sizer", "ComputeSize",
			fmt.Sprintf("entry price must be positive, got %v", in.EntryPrice))
	}
	if math.IsNaN(in.StopPrice) || math.IsInf(in.StopPrice, 0) {
		return SizingResult{}, rerrors.NewInvalidInputError("sizer", "ComputeSize",
			fmt.Sprintf("stop price must be finite, got %v", in.StopPrice))
	}
	if math.IsNaN(in.AccountBalance) || math.IsInf(in.AccountBalance, 0) {
		return SizingResult{}, rerrors.NewInvalidInputError("sizer", "ComputeSize",
			fmt.Sprintf("account balance must be finite, got %v", in.AccountBalance))
	}

	priceRisk := math.Abs(in.EntryPrice - in.StopPrice)
	if priceRisk == 0 {
		return SizingResult{}, rerrors.NewDivisionByZeroError("sizer", "ComputeSize",
			"stop price equals entry price").WithContext("entry_price", in.EntryPrice)
	}

	result := SizingResult{
		RiskBudget:        in.AccountBalance * params.MaxAccountRiskPct / 100,
		VolatilityFactor:  1,
		CorrelationFactor: 1,
	}
	result.BaseQuantity = result.RiskBudget / priceRisk

	maxSizeByPct := in.AccountBalance * params.MaxPositionSizePct / 100 / in.EntryPrice
	qty := result.BaseQuantity
	if maxSizeByPct < qty {
		qty = maxSizeByPct
		result.CappedBySize = true
	}

	if params.UseVolatilityAdjustment {
		result.VolatilityFactor = VolatilityAdjustment(in.Volatility, params.BaseVolatilityPct)
		qty *= result.VolatilityFactor
	}

	if in.Correlation != nil && params.CorrelationThreshold < 1 {
		result.CorrelationFactor = CorrelationAdjustment(*in.Correlation, params.CorrelationThreshold)
		qty *= result.CorrelationFactor
	}

	if qty < 0 || math.IsNaN(qty) {
		qty = 0
	}
	result.Quantity = roundDownToStep(qty, params.QuantityStep)

	return result, nil
}

// roundDownToStep floors qty to a multiple of step using decimal arithmetic
func roundDownToStep(qty, step float64) float64 {
	if step <= 0 || qty <= 0 {
		return qty
	}
	d := decimal.NewFromFloat(qty)
	s := decimal.NewFromFloat(step)
	rounded, _ := d.Div(s).Floor().Mul(s).Float64()
	return rounded
}
