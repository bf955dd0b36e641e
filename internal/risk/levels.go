package risk

import (
	"fmt"
	"math"

	rerrors "github.com/ducminhle1904/crypto-risk-engine/internal/errors"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// DefaultATRPeriod is used when LevelConfig.ATRPeriod is unset
const DefaultATRPeriod = 14

// LevelConfig configures the stop/target calculator
type LevelConfig struct {
	UseATR          bool
	ATRPeriod       int
	ATRMultiplier   float64
	FixedStopPct    float64 // percent of entry
	TakeProfitRatio float64 // reward:risk
}

// Levels is a stop-loss / take-profit pair
type Levels struct {
	StopLoss   float64
	TakeProfit float64
	Distance   float64 // |entry - stop|
}

// RiskReward returns |target - entry| / |entry - stop|, or 0 when the stop sits on the entry
func (l Levels) RiskReward(entryPrice float64) float64 {
	if l.Distance == 0 {
		return 0
	}
	return math.Abs(l.TakeProfit-entryPrice) / l.Distance
}

// ComputeLevels derives stop-loss and take-profit prices either from a fixed
// percentage of entry or from ATR x multiplier.
func ComputeLevels(atr ATRProvider, candles []types.OHLCV, entryPrice float64, direction Direction, cfg LevelConfig) (Levels, error) {
	if !direction.Valid() {
		return Levels{}, rerrors.NewInvalidInputError("levels", "ComputeLevels", "direction must be long or short")
	}
	if !isPositiveFinite(entryPrice) {
		return Levels{}, rerrors.NewInvalidInputError("levels", "ComputeLevels",
			fmt.Sprintf("entry price must be positive, got %v", entryPrice))
	}

	var distance float64
	if cfg.UseATR {
		period := cfg.ATRPeriod
		if period <= 0 {
			period = DefaultATRPeriod
		}
		if len(candles) < period {
			return Levels{}, rerrors.NewInvalidInputError("levels", "ComputeLevels",
				fmt.Sprintf("ATR stops need at least %d candles, got %d", period, len(candles))).
				WithContext("period", period)
		}
		if atr == nil {
			return Levels{}, rerrors.NewInvalidInputError("levels", "ComputeLevels", "no ATR provider configured")
		}

		value, err := atr.ATR(candles, period)
		if err != nil {
			e := rerrors.NewInvalidInputError("levels", "ComputeLevels", "ATR calculation failed")
			e.Underlying = err
			return Levels{}, e
		}
		distance = value * cfg.ATRMultiplier
	} else {
		distance = entryPrice * cfg.FixedStopPct / 100
	}

	sign := direction.sign()
	return Levels{
		StopLoss:   entryPrice - sign*distance,
		TakeProfit: entryPrice + sign*distance*cfg.TakeProfitRatio,
		Distance:   math.Abs(distance),
	}, nil
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
