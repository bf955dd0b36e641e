package risk

import (
	"fmt"
	"math"

	rerrors "github.com/ducminhle1904/crypto-risk-engine/internal/errors"
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

const (
	// VolatilityWindow is the number of candles the realized volatility is measured over
	VolatilityWindow = 20

	minVolatilityPct        = 0.1
	minVolatilityAdjustment = 0.2
	maxVolatilityAdjustment = 2.0
)

// CorrelationMatrix maps instrument -> instrument -> coefficient in [-1, 1].
// Lookups are symmetric and absent entries read as zero.
type CorrelationMatrix map[string]map[string]float64

// Get returns the correlation between a and b
func (m CorrelationMatrix) Get(a, b string) float64 {
	if row, ok := m[a]; ok {
		if v, ok := row[b]; ok {
			return v
		}
	}
	if row, ok := m[b]; ok {
		if v, ok := row[a]; ok {
			return v
		}
	}
	return 0
}

// Validate checks that every coefficient is a finite number in [-1, 1]
func (m CorrelationMatrix) Validate() error {
	for a, row := range m {
		for b, v := range row {
			if math.IsNaN(v) || v < -1 || v > 1 {
				return rerrors.NewInvalidInputError("correlation", "Validate",
					fmt.Sprintf("correlation %s/%s must be within [-1, 1], got %v", a, b, v)).
					WithContext("pair", a+"/"+b)
			}
		}
	}
	return nil
}

// Clone returns a deep copy
func (m CorrelationMatrix) Clone() CorrelationMatrix {
	if m == nil {
		return nil
	}
	out := make(CorrelationMatrix, len(m))
	for a, row := range m {
		r := make(map[string]float64, len(row))
		for b, v := range row {
			r[b] = v
		}
		out[a] = r
	}
	return out
}

// CorrelationContext is the candidate instrument plus the instruments currently held
type CorrelationContext struct {
	Instrument string
	Held       []string
	Matrix     CorrelationMatrix
}

// RealizedVolatilityPct returns the population standard deviation of the
// close-to-close returns over the last VolatilityWindow candles, in percent.
// ok is false when fewer than VolatilityWindow candles are available.
func RealizedVolatilityPct(candles []types.OHLCV) (vol float64, ok bool) {
	if len(candles) < VolatilityWindow {
		return 0, false
	}

	closes := types.Closes(candles[len(candles)-VolatilityWindow:])
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) == 0 {
		return 0, false
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * 100, true
}

// VolatilityAdjustment scales size inversely to realized volatility:
// clamp(baseVolatilityPct / max(realized, 0.1%), 0.2, 2.0). Short samples yield 1.
func VolatilityAdjustment(candles []types.OHLCV, baseVolatilityPct float64) float64 {
	realized, ok := RealizedVolatilityPct(candles)
	if !ok {
		return 1
	}

	adjustment := baseVolatilityPct / math.Max(realized, minVolatilityPct)
	return math.Min(math.Max(adjustment, minVolatilityAdjustment), maxVolatilityAdjustment)
}

// CorrelationAdjustment dampens size when the candidate is correlated with held
// instruments beyond threshold: 1 - (maxObserved - threshold), floored at 0.
func CorrelationAdjustment(ctx CorrelationContext, threshold float64) float64 {
	if len(ctx.Held) == 0 {
		return 1
	}

	var maxObserved float64
	for _, held := range ctx.Held {
		maxObserved = math.Max(maxObserved, math.Abs(ctx.Matrix.Get(ctx.Instrument, held)))
	}
	if maxObserved <= threshold {
		return 1
	}

	return math.Max(0, 1-(maxObserved-threshold))
}
