package risk

import (
	"math"
	"time"
)

// portfolioAggregator holds the session scalars that survive between snapshots
type portfolioAggregator struct {
	maxPortfolioValue float64 // high-water mark, never decreases
	maxDrawdownPct    float64
	dailyStartValue   float64
	dailyStartSet     bool
	correlations      CorrelationMatrix
}

// snapshot computes portfolio risk for the tracker's positions and advances the
// high-water mark. accountBalance must be positive.
func (a *portfolioAggregator) snapshot(tracker *PositionTracker, accountBalance float64, now time.Time) PortfolioRisk {
	tracker.setRiskPct(accountBalance)
	positions := tracker.List()

	p := PortfolioRisk{
		AccountBalance: accountBalance,
		OpenPositions:  len(positions),
		Timestamp:      now,
	}
	for _, pos := range positions {
		p.TotalUnrealizedPnL += pos.UnrealizedPnL
		p.TotalRiskAmount += pos.RiskAmount
		p.TotalExposure += pos.Notional()
	}

	p.TotalValue = accountBalance + p.TotalUnrealizedPnL
	p.TotalRiskPct = p.TotalRiskAmount / accountBalance * 100
	p.TotalUnrealizedPnLPct = p.TotalUnrealizedPnL / accountBalance * 100
	p.LeverageUtilization = p.TotalExposure / accountBalance

	if p.TotalValue > a.maxPortfolioValue {
		a.maxPortfolioValue = p.TotalValue
	}
	p.HighWaterMark = a.maxPortfolioValue
	if a.maxPortfolioValue > 0 {
		p.CurrentDrawdownPct = math.Max(0, (a.maxPortfolioValue-p.TotalValue)/a.maxPortfolioValue*100)
	}
	if p.CurrentDrawdownPct > a.maxDrawdownPct {
		a.maxDrawdownPct = p.CurrentDrawdownPct
	}
	p.MaxDrawdownPct = a.maxDrawdownPct

	if !a.dailyStartSet {
		a.dailyStartValue = accountBalance
		a.dailyStartSet = true
	}
	p.DailyStartValue = a.dailyStartValue
	p.DailyPnL = p.TotalValue - a.dailyStartValue
	if a.dailyStartValue > 0 {
		p.DailyPnLPct = p.DailyPnL / a.dailyStartValue * 100
	}

	p.CorrelationRisk = correlationRisk(positions, a.correlations)

	return p
}

// correlationRisk is the mean |correlation| over all unordered position pairs
func correlationRisk(positions []PositionRisk, matrix CorrelationMatrix) float64 {
	if len(positions) < 2 {
		return 0
	}

	var sum float64
	var pairs int
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			sum += math.Abs(matrix.Get(positions[i].Instrument, positions[j].Instrument))
			pairs++
		}
	}
	return sum / float64(pairs)
}
