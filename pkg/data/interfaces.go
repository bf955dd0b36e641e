package data

import (
	"github.com/ducminhle1904/crypto-risk-engine/pkg/types"
)

// CandleLoader loads historical candles from a source such as a file path
type CandleLoader interface {
	// LoadData loads candles from the specified source, oldest first
	LoadData(source string) ([]types.OHLCV, error)

	// ValidateData checks the integrity of loaded candles
	ValidateData(data []types.OHLCV) error
}

// CSVColumnMapping defines the column positions for different CSV formats
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string // empty means unix milliseconds
	HasHeader    bool
}

// Predefined CSV formats
var (
	DefaultCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		MinColumns:   6,
		DateFormat:   "2006-01-02 15:04:05",
		HasHeader:    true,
	}

	// Exchange kline exports: start time in epoch milliseconds
	UnixMillisCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		MinColumns:   6,
		HasHeader:    true,
	}
)
