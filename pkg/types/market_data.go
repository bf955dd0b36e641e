package types

import "time"

// OHLCV is a single candle of market data
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Closes returns the close prices of the given candles in order
func Closes(data []OHLCV) []float64 {
	closes := make([]float64, len(data))
	for i, c := range data {
		closes[i] = c.Close
	}
	return closes
}

// Last returns the most recent candle, if any
func Last(data []OHLCV) (OHLCV, bool) {
	if len(data) == 0 {
		return OHLCV{}, false
	}
	return data[len(data)-1], true
}
