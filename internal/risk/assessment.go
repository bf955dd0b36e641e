package risk

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	rerrors "github.com/ducminhle1904/crypto-risk-engine/internal/errors"
)

const (
	minRiskReward        = 1.5
	oversizeTolerance    = 1.5
	preTradeRiskMultiple = 2
)

// Assess decides whether the proposed trade may be opened. Every check runs so
// the caller sees all blocking reasons and warnings at once; only malformed
// input fails the call.
func (e *Engine) Assess(req AssessmentRequest) (RiskAssessment, error) {
	if err := validateRequest(req); err != nil {
		return RiskAssessment{}, err
	}

	e.mu.Lock()
	assessment, snapshot, err := e.assessLocked(req)
	e.mu.Unlock()
	if err != nil {
		return RiskAssessment{}, fmt.Errorf("assess %s: %w", req.Instrument, err)
	}

	fields := []zap.Field{
		zap.String("instrument", req.Instrument),
		zap.String("direction", req.Direction.String()),
		zap.Float64("requested_size", req.Size),
		zap.Float64("recommended_size", assessment.RecommendedSize),
		zap.Float64("risk_reward", assessment.RiskReward),
		zap.Strings("warnings", assessment.Warnings),
	}
	if assessment.CanOpenPosition {
		e.logger.Debug("Trade approved", fields...)
	} else {
		e.logger.Warn("Trade blocked", append(fields, zap.Strings("reasons", assessment.Reasons))...)
	}

	if e.recorder != nil {
		e.recorder.RecordSnapshot(snapshot)
		e.recorder.RecordAssessment(req.Instrument, assessment)
	}
	return assessment, nil
}

// assessLocked must be called with e.mu held. It also returns the portfolio
// snapshot taken for the aggregate checks.
func (e *Engine) assessLocked(req AssessmentRequest) (RiskAssessment, PortfolioRisk, error) {
	params := e.params
	a := RiskAssessment{
		RecommendedSize: req.Size,
		Reasons:         []string{},
		Warnings:        []string{},
	}

	// 1. leverage ceiling
	if req.Leverage > params.MaxLeverage {
		a.Reasons = append(a.Reasons, fmt.Sprintf("Leverage %.1fx exceeds maximum allowed leverage %.1fx",
			req.Leverage, params.MaxLeverage))
	}

	// 2. per-instrument position limit
	if open := e.tracker.CountByInstrument(req.Instrument); open >= params.MaxPositionsPerInstrument {
		a.Reasons = append(a.Reasons, fmt.Sprintf("Maximum positions for %s reached (%d/%d)",
			req.Instrument, open, params.MaxPositionsPerInstrument))
	}

	// 3. total position limit
	if open := e.tracker.Len(); open >= params.MaxTotalPositions {
		a.Reasons = append(a.Reasons, fmt.Sprintf("Maximum total positions reached (%d/%d)",
			open, params.MaxTotalPositions))
	}

	// 4. stop / target and reward:risk
	levels, err := ComputeLevels(e.atr, req.Candles, req.EntryPrice, req.Direction, params.LevelConfig())
	if err != nil {
		return RiskAssessment{}, PortfolioRisk{}, err
	}
	a.StopLossPrice = levels.StopLoss
	a.TakeProfitPrice = levels.TakeProfit
	a.RiskReward = levels.RiskReward(req.EntryPrice)
	if a.RiskReward < minRiskReward {
		a.Warnings = append(a.Warnings, fmt.Sprintf("Risk/reward ratio %.2f is below %.1f",
			a.RiskReward, minRiskReward))
	}

	// 5. optimal size
	sizing, err := ComputeSize(params, SizingInput{
		AccountBalance: req.AccountBalance,
		EntryPrice:     req.EntryPrice,
		StopPrice:      levels.StopLoss,
		Volatility:     req.Candles,
		Correlation: &CorrelationContext{
			Instrument: req.Instrument,
			Held:       e.tracker.HeldInstruments(),
			Matrix:     e.aggregator.correlations,
		},
	})
	if err != nil {
		return RiskAssessment{}, PortfolioRisk{}, err
	}
	a.OptimalSize = sizing.Quantity
	if req.Size > sizing.Quantity*oversizeTolerance {
		a.Warnings = append(a.Warnings, fmt.Sprintf("Requested size %.6g exceeds optimal size %.6g; reduced to optimal",
			req.Size, sizing.Quantity))
		a.RecommendedSize = sizing.Quantity
	}
	if sizing.CorrelationFactor < 1 {
		a.Warnings = append(a.Warnings, fmt.Sprintf("High correlation with open positions; size dampened to %.0f%%",
			sizing.CorrelationFactor*100))
	}
	if sizing.VolatilityFactor < 1 {
		a.Warnings = append(a.Warnings, fmt.Sprintf("Elevated volatility; size scaled to %.0f%%",
			sizing.VolatilityFactor*100))
	}

	// 6. aggregate risk including the new position
	portfolio := e.snapshotLocked(req.AccountBalance)
	newRiskPct := levels.Distance * a.RecommendedSize / req.AccountBalance * 100
	if limit := params.MaxAccountRiskPct * preTradeRiskMultiple; portfolio.TotalRiskPct+newRiskPct > limit {
		a.Reasons = append(a.Reasons, fmt.Sprintf("Total portfolio risk %.2f%% would exceed limit %.2f%%",
			portfolio.TotalRiskPct+newRiskPct, limit))
	}

	// 7. daily loss
	if portfolio.DailyPnLPct < -params.MaxDailyLossPct {
		a.Reasons = append(a.Reasons, fmt.Sprintf("Daily loss %.2f%% exceeds maximum %.2f%%",
			-portfolio.DailyPnLPct, params.MaxDailyLossPct))
	}

	// 8. drawdown
	if portfolio.CurrentDrawdownPct > params.MaxDrawdownPct {
		a.Reasons = append(a.Reasons, fmt.Sprintf("Drawdown %.2f%% exceeds maximum %.2f%%",
			portfolio.CurrentDrawdownPct, params.MaxDrawdownPct))
	}

	a.CanOpenPosition = len(a.Reasons) == 0
	return a, portfolio, nil
}

func validateRequest(req AssessmentRequest) error {
	switch {
	case req.Instrument == "":
		return rerrors.NewInvalidInputError("assessment", "Assess", "instrument is required")
	case !req.Direction.Valid():
		return rerrors.NewInvalidInputError("assessment", "Assess", "direction must be long or short")
	case !isPositiveFinite(req.EntryPrice):
		return rerrors.NewInvalidInputError("assessment", "Assess",
			fmt.Sprintf("entry price must be positive, got %v", req.EntryPrice))
	case req.Size < 0 || math.IsNaN(req.Size) || math.IsInf(req.Size, 0):
		return rerrors.NewInvalidInputError("assessment", "Assess",
			fmt.Sprintf("size must be a non-negative number, got %v", req.Size))
	case !isPositiveFinite(req.Leverage):
		return rerrors.NewInvalidInputError("assessment", "Assess",
			fmt.Sprintf("leverage must be positive, got %v", req.Leverage))
	}
	return checkBalance("Assess", req.AccountBalance)
}
