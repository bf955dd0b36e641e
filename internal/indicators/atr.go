package indicators

import (
	"errors"
	"math"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// ErrInsufficientData is returned when the candle window is shorter than the period
var ErrInsufficientData = errors.New("insufficient data points for ATR calculation")

// WilderATR computes the Average True Range using Wilder's smoothing.
// The zero value is ready to use and holds no state between calls, so the same
// candle window always yields the same value.
type WilderATR struct{}

// NewWilderATR creates a new ATR provider
func NewWilderATR() WilderATR {
	return WilderATR{}
}

// ATR returns the current ATR value over the given candles
func (WilderATR) ATR(data []types.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("ATR period must be positive")
	}
	if len(data) < period {
		return 0, ErrInsufficientData
	}

	// Seed with the simple average of the first period true ranges
	var sum float64
	for i := 0; i < period; i++ {
		sum += trueRange(data, i)
	}
	atr := sum / float64(period)

	// Wilder smoothing for the rest of the window
	p := float64(period)
	for i := period; i < len(data); i++ {
		atr = (atr*(p-1) + trueRange(data, i)) / p
	}

	return atr, nil
}

// trueRange = max(High-Low, |High-PrevClose|, |Low-PrevClose|); the first candle has no prior close.
func trueRange(data []types.OHLCV, i int) float64 {
	current := data[i]
	hl := current.High - current.Low
	if i == 0 {
		return hl
	}

	prevClose := data[i-1].Close
	hc := math.Abs(current.High - prevClose)
	lc := math.Abs(current.Low - prevClose)

	return math.Max(hl, math.Max(hc, lc))
}
