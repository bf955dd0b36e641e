package data

import (
	"sort"
	"time"

	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// FilterByPeriod keeps the candles within period of the latest timestamp.
// data must be in chronological order.
func FilterByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV {
	if period <= 0 || len(data) == 0 {
		return data
	}

	cutoff := data[len(data)-1].Timestamp.Add(-period)
	start := sort.Search(len(data), func(i int) bool {
		return !data[i].Timestamp.Before(cutoff)
	})
	return data[start:]
}

// FilterByDateRange keeps the candles in [start, end]. A zero bound is open.
func FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	var filtered []types.OHLCV
	for _, candle := range data {
		if !start.IsZero() && candle.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && candle.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, candle)
	}
	return filtered
}
